package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/cvantienen/gsaScrape/config"
	"github.com/cvantienen/gsaScrape/parser"
)

// RodDriver drives one headless Chromium. Each session is an isolated
// incognito context with its own page.
type RodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      *config.Config
}

// NewRodDriver launches the browser described by cfg.
func NewRodDriver(cfg *config.Config) (*RodDriver, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Debug("browser launched", slog.String("control_url", controlURL))

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	return &RodDriver{launcher: l, browser: browser, cfg: cfg}, nil
}

// NewSession opens an incognito context and a blank page in it.
func (d *RodDriver) NewSession() (Session, error) {
	incognito, err := d.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("open incognito context: %w", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	if d.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: d.cfg.UserAgent}); err != nil {
			slog.Warn("set user agent failed", slog.Any("error", err))
		}
	}

	return &rodSession{
		incognito: incognito,
		page:      page,
		timeout:   d.cfg.Timeout,
		settle:    d.cfg.SettleSelector,
	}, nil
}

// Close shuts the browser down and kills the process.
func (d *RodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	return err
}

type rodSession struct {
	incognito *rod.Browser
	page      *rod.Page
	timeout   time.Duration
	settle    string
}

func (s *rodSession) Navigate(ctx context.Context, url string) (*parser.Document, error) {
	if err := checkURL(url); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return nil, err
	}
	if err := p.WaitLoad(); err != nil {
		return nil, err
	}

	if s.settle != "" {
		if _, err := p.Element(s.settle); err != nil {
			return nil, err
		}
	} else if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Debug("dom did not settle, using current snapshot",
			slog.String("url", url),
			slog.Any("error", err),
		)
	}

	html, err := p.HTML()
	if err != nil {
		return nil, err
	}
	return parser.NewDocument(url, html)
}

func (s *rodSession) Close() error {
	_ = s.page.Close()
	return s.incognito.Close()
}
