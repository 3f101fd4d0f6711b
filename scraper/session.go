package scraper

import (
	"context"
	"errors"
	"net/url"

	"github.com/cvantienen/gsaScrape/parser"
)

// Session is one navigation state, equivalent to a single browser tab.
// It is not safe for concurrent use: every worker owns its own.
type Session interface {
	// Navigate loads url, waits for it to settle, and snapshots the document.
	Navigate(ctx context.Context, url string) (*parser.Document, error)
	Close() error
}

// Driver mints independent sessions.
type Driver interface {
	NewSession() (Session, error)
	Close() error
}

func openSessions(d Driver, n int) ([]Session, error) {
	sessions := make([]Session, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.NewSession()
		if err != nil {
			closeSessions(sessions)
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func closeSessions(sessions []Session) {
	for _, s := range sessions {
		_ = s.Close()
	}
}

// checkURL rejects links no driver could navigate to.
func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return &url.Error{Op: "parse", URL: raw, Err: errors.New("missing scheme or host")}
	}
	return nil
}
