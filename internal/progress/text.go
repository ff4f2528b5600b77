package progress

import (
	"fmt"
	"io"
	"sync"
)

// TextSink prints one progress line whenever completion or the status
// counts change. It is used when stdout is not a terminal.
type TextSink struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

// NewTextSink writes progress lines to out.
func NewTextSink(out io.Writer) *TextSink {
	return &TextSink{out: out}
}

// Render implements Sink.
func (s *TextSink) Render(v View) error {
	line := fmt.Sprintf("[%5.1f%%] %d/%d %s", v.Percent(), v.Completed, v.Total, countsLine(v, false))
	s.mu.Lock()
	defer s.mu.Unlock()
	if line == s.last {
		return nil
	}
	s.last = line
	_, err := fmt.Fprintln(s.out, line)
	return err
}
