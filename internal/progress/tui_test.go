package progress

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"garnet-sweep/internal/sweep"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUISinkSendsViews(t *testing.T) {
	p := &fakeProgram{}
	s := &TUISink{program: p}
	v := Project("t", testSchema(), testStore().Snapshot(), 2, 3)
	if err := s.Render(v); err != nil {
		t.Fatalf("Render: %v", err)
	}
	msg, ok := p.msgs[0].(viewMsg)
	if !ok {
		t.Fatalf("expected viewMsg, got %T", p.msgs[0])
	}
	if msg.Completed != 2 {
		t.Fatalf("view not forwarded")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, ok := p.msgs[1].(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg on close, got %T", p.msgs[1])
	}
}

func TestTUIModelRows(t *testing.T) {
	m := newTUIModel("t", testSchema())
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(viewMsg{Project("t", testSchema(), testStore().Snapshot(), 2, 3)})
	m = mi.(tuiModel)
	if n := len(m.table.Rows()); n != 2 {
		t.Fatalf("expected 2 pending rows, got %d", n)
	}
	if !strings.Contains(m.View(), "2/3") {
		t.Fatalf("header missing progress")
	}

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	m = mi.(tuiModel)
	if !m.onlyFailed {
		t.Fatalf("failed filter not toggled")
	}
	rows := m.table.Rows()
	if len(rows) != 1 || rows[0][2] != string(sweep.StatusFailed) {
		t.Fatalf("unexpected filtered rows %v", rows)
	}
}

func TestTUIModelHelpAndQuit(t *testing.T) {
	m := newTUIModel("t", testSchema())
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = mi.(tuiModel)
	if !m.help || !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help view not shown")
	}
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected QuitMsg")
	}
}
