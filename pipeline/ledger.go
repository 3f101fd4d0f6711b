package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/cvantienen/gsaScrape/models"
)

// Ledger is the append-only record of links that could not be scraped.
// It is safe for concurrent use and is written out once, at run end.
type Ledger struct {
	mu      sync.Mutex
	entries []models.LedgerEntry
	partial []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append adds one entry.
func (l *Ledger) Append(e models.LedgerEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// AddPartial notes a contractor whose page loaded but lacked a required
// field. It is listed in the missing report only.
func (l *Ledger) AddPartial(identifier string) {
	l.mu.Lock()
	l.partial = append(l.partial, identifier)
	l.mu.Unlock()
}

// Partial returns the identifiers noted by AddPartial, in order.
func (l *Ledger) Partial() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.partial)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy of the entries in append order.
func (l *Ledger) Entries() []models.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Flush writes the missing-contractors report (one identifier per line:
// failed links first, then partial records) and the error-links report (one
// URL per line, failed links only). Both files are created even when the
// ledger is empty.
func (l *Ledger) Flush(missingPath, errorPath string) error {
	l.mu.Lock()
	missing := make([]string, 0, len(l.entries)+len(l.partial))
	links := make([]string, 0, len(l.entries))
	for _, e := range l.entries {
		missing = append(missing, e.Identifier)
		links = append(links, e.URL)
	}
	missing = append(missing, l.partial...)
	l.mu.Unlock()

	if err := writeLines(missingPath, missing); err != nil {
		return fmt.Errorf("write missing report: %w", err)
	}
	if err := writeLines(errorPath, links); err != nil {
		return fmt.Errorf("write error report: %w", err)
	}
	return nil
}

func writeLines(path string, lines []string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
