package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Terminal is for displaying fetch outcomes on terminal.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// TerminalTimestamp is used as a format to display only the time.
const TerminalTimestamp = "15:04:05.999"

// NewTerminal returns a terminal display writing to out.
// Output writer is always os.Stdout except in case of testing.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// WriteLog outputs one fetch log entry as a line.
func (t *Terminal) WriteLog(_ context.Context, entry FetchLog) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var err error
	if entry.Status == StatusSuccess {
		_, err = fmt.Fprintf(t.out, "%-15s%-12s%-10s%8d pairs\n", entry.FetchedAt.Local().Format(TerminalTimestamp), entry.Exchange, entry.Status, entry.PairsCount)
	} else {
		_, err = fmt.Fprintf(t.out, "%-15s%-12s%-10s%s\n", entry.FetchedAt.Local().Format(TerminalTimestamp), entry.Exchange, entry.Status, entry.ErrorMessage)
	}
	return err
}
