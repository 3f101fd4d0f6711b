// Package scraper walks the contractor directory letter by letter and feeds
// every detail page to a Sink, one browser session per worker.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/models"
	"github.com/cvantienen/gsaScrape/parser"
	"github.com/cvantienen/gsaScrape/pipeline"
)

// Scraper orchestrates a run over all configured letters.
type Scraper struct {
	cfg     *config.Config
	driver  Driver
	sink    Sink
	ledger  *pipeline.Ledger
	limiter *rate.Limiter
	walker  *Walker
	retry   *retryPolicy
	Metrics *Metrics

	mu     sync.Mutex
	result *models.RunResult
}

// NewScraper wires a scraper. Failed links are appended to ledger.
func NewScraper(cfg *config.Config, driver Driver, sink Sink, ledger *pipeline.Ledger, metrics *Metrics) *Scraper {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)

	return &Scraper{
		cfg:     cfg,
		driver:  driver,
		sink:    sink,
		ledger:  ledger,
		limiter: limiter,
		walker:  NewWalker(cfg, limiter, metrics),
		retry:   newRetryPolicy(cfg, metrics),
		Metrics: metrics,
	}
}

// Run processes every letter in order. Failures are logged and recorded;
// only cancellation of ctx or a driver that cannot open sessions stops it.
func (s *Scraper) Run(ctx context.Context) (*models.RunResult, error) {
	s.result = &models.RunResult{
		StartTime:     time.Now(),
		FailedLetters: make(map[string]string),
		ErrorsByType:  make(map[string]int),
	}

	sessions, err := openSessions(s.driver, s.cfg.Workers)
	if err != nil {
		return s.finish(), fmt.Errorf("open sessions: %w", err)
	}
	defer closeSessions(sessions)

	for _, letter := range s.cfg.Letters {
		if ctx.Err() != nil {
			break
		}
		s.runLetter(ctx, letter, sessions)
	}

	return s.finish(), ctx.Err()
}

func (s *Scraper) runLetter(ctx context.Context, letter string, sessions []Session) {
	s.mu.Lock()
	s.result.LetterCount++
	s.mu.Unlock()

	links, skipped, err := s.walker.walk(ctx, sessions[0], letter)
	switch {
	case err != nil && ctx.Err() != nil:
		return
	case err != nil:
		slog.Error("letter failed",
			slog.String("letter", letter),
			slog.Any("error", err),
		)
		s.failLetter(letter, err)
		return
	case skipped:
		s.mu.Lock()
		s.result.SkippedLetters = append(s.result.SkippedLetters, letter)
		s.mu.Unlock()
		s.Metrics.IncLetter("skipped")
		return
	}

	if err := s.processLinks(ctx, letter, links, sessions); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("letter aborted",
			slog.String("letter", letter),
			slog.Any("error", err),
		)
		s.failLetter(letter, err)
		return
	}
	s.Metrics.IncLetter("completed")
	slog.Info("letter completed", slog.String("letter", letter))
}

// processLinks fans the links out to one worker per session. The first
// unrecoverable error cancels the remaining links of the letter.
func (s *Scraper) processLinks(ctx context.Context, letter string, links iter.Seq[string], sessions []Session) error {
	g, gctx := errgroup.WithContext(ctx)
	linkCh := make(chan string)

	g.Go(func() error {
		defer close(linkCh)
		for link := range links {
			select {
			case linkCh <- link:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for _, sess := range sessions {
		g.Go(func() (err error) {
			var current string
			defer func() {
				if r := recover(); r != nil {
					slog.Error("worker panicked",
						slog.String("letter", letter),
						slog.String("url", current),
						slog.Any("panic", r),
					)
					s.countError("panic")
					err = panicError{Value: r}
				}
			}()

			for link := range linkCh {
				current = link
				if err := s.processLink(gctx, sess, letter, link); err != nil {
					return err
				}
			}
			return nil
		})
	}

	return g.Wait()
}

// processLink navigates to one detail page and hands it to the sink.
// Timeouts and unresolvable links are ledgered and skipped.
func (s *Scraper) processLink(ctx context.Context, sess Session, letter, link string) error {
	s.mu.Lock()
	s.result.LinkCount++
	s.mu.Unlock()

	doc, err := s.navigate(ctx, sess, link)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		classified := classifyError(err)
		label := errorTypeLabel(classified)
		s.countError(label)
		s.ledger.Append(models.LedgerEntry{
			Identifier: parser.ContractorName(link),
			URL:        link,
			Reason:     classified.Error(),
		})
		s.countOutcome(models.OutcomeFailure)

		if recoverable(classified) {
			slog.Warn("detail page skipped",
				slog.String("letter", letter),
				slog.String("url", link),
				slog.String("category", label),
				slog.Any("error", err),
			)
			return nil
		}
		return fmt.Errorf("detail %s: %w", link, classified)
	}

	outcome, err := s.sink.Accept(ctx, doc)
	if err != nil {
		return fmt.Errorf("sink %s: %w", link, err)
	}
	s.countOutcome(outcome.Kind)
	if outcome.Kind == models.OutcomePartial {
		s.ledger.AddPartial(parser.ContractorName(link))
	}
	return nil
}

// navigate waits for the shared rate limit and retries timeouts.
func (s *Scraper) navigate(ctx context.Context, sess Session, link string) (*parser.Document, error) {
	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		doc, err := sess.Navigate(ctx, link)
		if err == nil {
			s.Metrics.ObserveNavigation("detail", "ok", time.Since(start))
			return doc, nil
		}
		classified := classifyError(err)
		s.Metrics.ObserveNavigation("detail", errorTypeLabel(classified), time.Since(start))

		var timeout ErrTimeout
		if !errors.As(classified, &timeout) || ctx.Err() != nil {
			return nil, err
		}
		delay, ok := s.retry.next(attempt + 1)
		if !ok {
			return nil, err
		}
		slog.Debug("retrying detail page",
			slog.String("url", link),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Scraper) failLetter(letter string, err error) {
	s.mu.Lock()
	s.result.FailedLetters[letter] = err.Error()
	s.mu.Unlock()
	s.Metrics.IncLetter("failed")
}

func (s *Scraper) countError(label string) {
	s.mu.Lock()
	s.result.ErrorsByType[label]++
	s.mu.Unlock()
	s.Metrics.IncError(label)
}

func (s *Scraper) countOutcome(kind models.OutcomeKind) {
	s.mu.Lock()
	switch kind {
	case models.OutcomeSuccess:
		s.result.RecordCount++
	case models.OutcomePartial:
		s.result.RecordCount++
		s.result.PartialCount++
	case models.OutcomeFailure:
		s.result.FailureCount++
	}
	s.mu.Unlock()
	s.Metrics.IncRecord(kind.String())
}

func (s *Scraper) finish() *models.RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := *s.result
	out.EndTime = time.Now()
	out.SkippedLetters = append([]string(nil), s.result.SkippedLetters...)
	out.FailedLetters = maps.Clone(s.result.FailedLetters)
	out.ErrorsByType = maps.Clone(s.result.ErrorsByType)
	return &out
}

// RetryCount returns how many navigation retries were scheduled.
func (s *Scraper) RetryCount() int {
	return s.retry.total()
}

type retryPolicy struct {
	cfg     *config.Config
	metrics *Metrics

	mu           sync.Mutex
	totalRetries int
}

func newRetryPolicy(cfg *config.Config, metrics *Metrics) *retryPolicy {
	return &retryPolicy{cfg: cfg, metrics: metrics}
}

// next reports the delay before retry number attempt, or false when the
// retry budget is spent.
func (rp *retryPolicy) next(attempt int) (time.Duration, bool) {
	if attempt > rp.cfg.MaxRetries {
		return 0, false
	}
	rp.mu.Lock()
	rp.totalRetries++
	rp.mu.Unlock()
	rp.metrics.IncRetries()
	return rp.backoff(attempt), true
}

func (rp *retryPolicy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rp.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	limit := rp.cfg.RetryBackoffMax
	if limit <= 0 {
		limit = math.MaxInt64
	}

	// Doubling stops at the cap so large attempt counts cannot overflow.
	delay := min(base, limit)
	for i := 1; i < attempt && delay < limit; i++ {
		if delay > limit/2 {
			delay = limit
			break
		}
		delay *= 2
	}
	return delay
}

func (rp *retryPolicy) total() int {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.totalRetries
}
