// Package browser drives Chrome through the DevTools protocol.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/1195214305/xhs-backend/config"
	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
)

const (
	windowWidth  = 1280
	windowHeight = 900
)

// Launcher starts one isolated Chrome instance per login flow
type Launcher struct {
	cfg    *config.BrowserConfig
	logger zerolog.Logger
}

// NewLauncher creates a Chrome launcher
func NewLauncher(cfg *config.BrowserConfig, logger zerolog.Logger) *Launcher {
	return &Launcher{
		cfg:    cfg,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

func (l *Launcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.WindowSize(windowWidth, windowHeight),
	)
	if l.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.cfg.UserAgent))
	}
	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}
	return opts
}

// Launch starts the browser and enables network events on its first tab.
// The browser outlives ctx; it is released by Session.Close.
func (l *Launcher) Launch(ctx context.Context) (deps.Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), l.allocatorOptions()...)

	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.logger.Debug().Msgf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			l.logger.Debug().Msgf(format, args...)
		}),
	)

	s := newSession(tabCtx, func() {
		tabCancel()
		allocCancel()
	}, l.logger)

	chromedp.ListenTarget(tabCtx, s.onEvent)

	if err := s.run(ctx, "launch", network.Enable()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	l.logger.Info().Bool("headless", l.cfg.Headless).Msg("Browser launched")
	return s, nil
}

var _ deps.BrowserLauncher = (*Launcher)(nil)
