// Package app wires configuration into collaborators and drives leads through research,
// synthesis and review.
package app

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/config"
	"github.com/shpitdev/dossier-outreach/internal/lead"
	"github.com/shpitdev/dossier-outreach/internal/lead/sheets"
	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/mail"
	"github.com/shpitdev/dossier-outreach/internal/search"
)

// App is the application context: every collaborator of a run, built once at start.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	runID  string

	store     lead.Store
	provider  search.Provider
	generator llm.Generator
	sender    mail.Sender
	signature mail.Signature
	skipRules lead.SkipRules

	sleep   func(ctx context.Context, d time.Duration) error
	closers []io.Closer
}

// Option overrides a collaborator that New would otherwise build from configuration.
type Option func(*App)

func WithStore(s lead.Store) Option { return func(a *App) { a.store = s } }

func WithProvider(p search.Provider) Option { return func(a *App) { a.provider = p } }

func WithGenerator(g llm.Generator) Option { return func(a *App) { a.generator = g } }

func WithSender(s mail.Sender) Option { return func(a *App) { a.sender = s } }

// WithDryRun logs approved messages instead of sending them. Approved leads are not
// recorded as sent.
func WithDryRun() Option {
	return func(a *App) { a.sender = mail.NewDryRun(a.logger) }
}

// WithSleep replaces the pause between leads.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(a *App) { a.sleep = fn }
}

// New builds the application context. Collaborators not supplied through opts are created
// from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, eris.New("app: config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	a := &App{
		cfg:       cfg,
		logger:    logger.With(zap.String("run_id", runID)),
		runID:     runID,
		signature: signatureFrom(cfg.Signature),
		skipRules: skipRulesFrom(cfg.SkipRules),
		sleep:     sleepCtx,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.buildMissing(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.provider = newTracedProvider(a.provider, a.logger)
	a.generator = newTracedGenerator(a.generator, a.logger, cfg.Gemini.Model)
	return a, nil
}

func (a *App) buildMissing(ctx context.Context) error {
	cfg := a.cfg
	if a.store == nil {
		switch cfg.LeadSource {
		case config.LeadSourceCSV:
			a.store = lead.NewCSVStore(cfg.LeadsCSV)
		default:
			st, err := sheets.New(ctx, sheets.Config{
				SpreadsheetID:   cfg.Sheets.SpreadsheetID,
				Worksheet:       cfg.Sheets.Worksheet,
				CredentialsJSON: cfg.Sheets.CredentialsJSON,
				Endpoint:        cfg.Sheets.Endpoint,
			}, a.logger)
			if err != nil {
				return err
			}
			a.store = st
		}
	}

	if a.provider == nil {
		p, err := a.buildProvider(ctx)
		if err != nil {
			return err
		}
		a.provider = p
	}

	if a.generator == nil {
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:         cfg.Gemini.APIKey,
			Model:          cfg.Gemini.Model,
			BaseURL:        cfg.Gemini.BaseURL,
			RateLimitRPS:   cfg.Gemini.RateLimitRPS,
			MaxRetries:     cfg.Gemini.MaxRetries,
			RequestTimeout: cfg.Gemini.RequestTimeout,
		})
		if err != nil {
			return err
		}
		a.generator = g
	}

	if a.sender == nil {
		s, err := mail.NewSMTP(mail.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			From:     cfg.SMTP.SenderEmail,
			Password: cfg.SMTP.Password,
		}, a.logger)
		if err != nil {
			return err
		}
		a.sender = s
	}
	return nil
}

func (a *App) buildProvider(ctx context.Context) (search.Provider, error) {
	var backends []search.Backend
	for _, name := range a.cfg.Search.Backends {
		switch name {
		case config.BackendDuckDuckGo:
			backends = append(backends, search.NewDuckDuckGo(nil, ""))
		case config.BackendGoogleCSE:
			b, err := search.NewGoogleCSE(ctx, a.cfg.Search.CSEAPIKey, a.cfg.Search.CSEID)
			if err != nil {
				return nil, err
			}
			backends = append(backends, b)
		case config.BackendBingRendered:
			b := search.NewBingRendered("")
			a.closers = append(a.closers, b)
			backends = append(backends, b)
		default:
			return nil, eris.Errorf("app: unknown search backend %q", name)
		}
	}
	if len(backends) == 0 {
		return nil, eris.New("app: no search backends configured")
	}
	m := search.NewMulti(a.logger, search.MultiOptions{
		DelayMin: a.cfg.Search.DelayMin,
		DelayMax: a.cfg.Search.DelayMax,
	}, backends...)
	a.logger.Info("search backends ready", zap.Strings("backends", m.Backends()))
	return m, nil
}

// RunID identifies this process in every log line.
func (a *App) RunID() string { return a.runID }

// Close releases collaborators that hold processes or connections.
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close collaborator", logging.Err(err))
			if first == nil {
				first = err
			}
		}
	}
	a.closers = nil
	return first
}

func signatureFrom(s config.SignatureConfig) mail.Signature {
	return mail.Signature{
		Name:      s.Name,
		Company:   s.Company,
		Role:      s.Role,
		Phone:     s.Phone,
		InfoEmail: s.InfoEmail,
		Tagline:   s.Tagline,
	}
}

func skipRulesFrom(in []config.SkipRule) lead.SkipRules {
	out := make(lead.SkipRules, 0, len(in))
	for _, r := range in {
		out = append(out, lead.SkipRule{Field: r.Column, Keywords: r.Keywords})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
