package sweep

import "testing"

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"SUCCESS":             StatusSuccess,
		"[green]SUCCESS":      StatusSuccess,
		"[bold red]FAILED":    StatusFailed,
		"[cyan]READING STATS": StatusReadingMetrics,
		"READING_METRICS":     StatusReadingMetrics,
		" running ":           StatusRunning,
		"[yellow]WAITING[/]":  StatusWaiting,
	}
	for in, want := range cases {
		got, err := ParseStatus(in)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseStatus("DONE"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusSuccess || s == StatusFailed
		if s.Terminal() != want {
			t.Fatalf("%s.Terminal() = %v", s, s.Terminal())
		}
	}
}
