package scraper

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/cvantienen/gsaScrape/config"
)

// Walker enumerates the detail links reachable from one letter's index page.
type Walker struct {
	cfg     *config.Config
	limiter *rate.Limiter
	metrics *Metrics
}

// NewWalker builds a walker. limiter and metrics may be nil.
func NewWalker(cfg *config.Config, limiter *rate.Limiter, metrics *Metrics) *Walker {
	return &Walker{cfg: cfg, limiter: limiter, metrics: metrics}
}

// Walk navigates sess to the index page for letter and returns the detail
// links on it, in page order without duplicates. A host that cannot be
// resolved or reached skips the letter with an empty sequence; any other
// navigation error is returned. The sequence can be ranged over once.
func (w *Walker) Walk(ctx context.Context, sess Session, letter string) (iter.Seq[string], error) {
	seq, _, err := w.walk(ctx, sess, letter)
	return seq, err
}

func (w *Walker) walk(ctx context.Context, sess Session, letter string) (iter.Seq[string], bool, error) {
	listing := w.cfg.ListingURL(letter)

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, false, err
		}
	}

	start := time.Now()
	doc, err := sess.Navigate(ctx, listing)
	if err != nil {
		classified := classifyError(err)
		label := errorTypeLabel(classified)
		w.metrics.ObserveNavigation("listing", label, time.Since(start))
		if skippable(classified) {
			slog.Warn("listing unreachable, skipping letter",
				slog.String("letter", letter),
				slog.String("url", listing),
				slog.String("category", label),
				slog.Any("error", err),
			)
			return emptySeq, true, nil
		}
		return nil, false, fmt.Errorf("listing %s: %w", listing, classified)
	}
	w.metrics.ObserveNavigation("listing", "ok", time.Since(start))

	links := doc.Links()
	prefix := w.cfg.DetailURLPrefix
	var used atomic.Bool

	seq := func(yield func(string) bool) {
		if used.Swap(true) {
			return
		}
		for _, link := range links {
			if !strings.HasPrefix(link, prefix) {
				continue
			}
			if !yield(link) {
				return
			}
		}
	}
	return seq, false, nil
}

func emptySeq(func(string) bool) {}
