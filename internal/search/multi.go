package search

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/logging"
)

// MultiOptions configures the jittered pause before each backend call.
type MultiOptions struct {
	DelayMin time.Duration
	DelayMax time.Duration
	// Now and Jitter are test hooks. Jitter returns a value in [0,1).
	Now    func() time.Time
	Jitter func() float64
}

// Multi queries every backend in order, pausing a random [DelayMin, DelayMax] before each
// call. A backend error is logged and the next backend still runs. Hits are not
// de-duplicated across backends.
type Multi struct {
	backends []Backend
	opts     MultiOptions
	logger   *zap.Logger
}

func NewMulti(logger *zap.Logger, opts MultiOptions, backends ...Backend) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DelayMax < opts.DelayMin {
		opts.DelayMax = opts.DelayMin
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	return &Multi{backends: backends, opts: opts, logger: logger}
}

// Backends returns the configured backend names in call order.
func (m *Multi) Backends() []string {
	out := make([]string, 0, len(m.backends))
	for _, b := range m.backends {
		out = append(out, b.Name())
	}
	return out
}

func (m *Multi) Search(ctx context.Context, q Query) Batch {
	var batch Batch
	for _, b := range m.backends {
		if err := m.pause(ctx); err != nil {
			batch.Errors = append(batch.Errors, eris.Wrapf(err, "search: %s", b.Name()))
			return batch
		}

		batch.Attempted++
		hits, err := b.Search(ctx, q.Text, q.MaxResults)
		if err != nil {
			m.logger.Warn("search backend failed",
				zap.String("backend", b.Name()),
				zap.String("query", q.Text),
				logging.Err(err),
			)
			batch.Errors = append(batch.Errors, eris.Wrapf(err, "search: %s", b.Name()))
			continue
		}
		batch.Succeeded++

		now := m.opts.Now()
		for _, h := range hits {
			batch.Results = append(batch.Results, Result{
				Source:     b.Name(),
				Query:      q.Text,
				Title:      h.Title,
				Link:       h.URL,
				Snippet:    h.Snippet,
				Timestamp:  now,
				SearchType: q.Type,
			})
		}
		m.logger.Debug("search backend ok",
			zap.String("backend", b.Name()),
			zap.String("query", q.Text),
			zap.Int("hits", len(hits)),
		)
	}
	return batch
}

func (m *Multi) pause(ctx context.Context) error {
	d := m.opts.DelayMin
	if span := m.opts.DelayMax - m.opts.DelayMin; span > 0 {
		d += time.Duration(m.opts.Jitter() * float64(span))
	}
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
