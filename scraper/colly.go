package scraper

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/parser"
)

// CollyDriver fetches pages over plain HTTP without rendering scripts.
// Each session is its own synchronous collector.
type CollyDriver struct {
	cfg       *config.Config
	transport http.RoundTripper
}

// CollyOption configures a CollyDriver.
type CollyOption func(*CollyDriver)

// WithTransport replaces the HTTP transport of every session.
func WithTransport(rt http.RoundTripper) CollyOption {
	return func(d *CollyDriver) {
		d.transport = rt
	}
}

// NewCollyDriver builds a driver from cfg.
func NewCollyDriver(cfg *config.Config, opts ...CollyOption) *CollyDriver {
	d := &CollyDriver{cfg: cfg}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// NewSession returns a fresh collector-backed session.
func (d *CollyDriver) NewSession() (Session, error) {
	c := colly.NewCollector(
		colly.UserAgent(d.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(d.cfg.Timeout)

	if d.transport != nil {
		c.WithTransport(d.transport)
	} else {
		c.WithTransport(&http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   d.cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		})
	}
	if d.cfg.Proxy != "" {
		if err := c.SetProxy(d.cfg.Proxy); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	s := &collySession{collector: c}
	c.OnResponse(func(r *colly.Response) {
		s.body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			s.status = r.StatusCode
		}
	})
	return s, nil
}

// Close is a no-op; sessions hold no shared resources.
func (d *CollyDriver) Close() error {
	return nil
}

type collySession struct {
	collector *colly.Collector
	body      []byte
	status    int
}

func (s *collySession) Navigate(ctx context.Context, url string) (*parser.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkURL(url); err != nil {
		return nil, err
	}
	s.body, s.status = nil, 0

	if err := s.collector.Visit(url); err != nil {
		if s.status != 0 {
			return nil, fmt.Errorf("http status %d: %w", s.status, err)
		}
		return nil, err
	}
	if s.body == nil {
		return nil, fmt.Errorf("no response body for %s", url)
	}
	return parser.NewDocument(url, string(s.body))
}

func (s *collySession) Close() error {
	return nil
}
