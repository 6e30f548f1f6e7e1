package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/shpitdev/dossier-outreach/internal/llm"
	"github.com/shpitdev/dossier-outreach/internal/logging"
	"github.com/shpitdev/dossier-outreach/internal/search"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/worker"
)

// tracedProvider logs one request and one response line per search query.
type tracedProvider struct {
	next   search.Provider
	logger *zap.Logger
	seq    atomic.Int64
}

func newTracedProvider(next search.Provider, logger *zap.Logger) *tracedProvider {
	return &tracedProvider{next: next, logger: logger}
}

func (t *tracedProvider) Search(ctx context.Context, q search.Query) search.Batch {
	n := t.seq.Add(1)
	t.logger.Debug("search request",
		zap.Int64("seq", n),
		zap.String("query", q.Text),
		zap.String("search_type", string(q.Type)),
		zap.Int("max_results", q.MaxResults))

	start := time.Now()
	b := t.next.Search(ctx, q)
	fields := []zap.Field{
		zap.Int64("seq", n),
		logging.Duration(time.Since(start)),
		zap.Int("results", len(b.Results)),
		zap.Int("attempted", b.Attempted),
		zap.Int("succeeded", b.Succeeded),
	}
	if len(b.Errors) > 0 {
		t.logger.Debug("search response", append(fields, logging.Err(b.Errors[0]))...)
		return b
	}
	t.logger.Debug("search response", fields...)
	return b
}

// tracedGenerator logs one request and one response line per model call.
type tracedGenerator struct {
	next   llm.Generator
	logger *zap.Logger
	model  string
	seq    atomic.Int64
}

func newTracedGenerator(next llm.Generator, logger *zap.Logger, model string) *tracedGenerator {
	return &tracedGenerator{next: next, logger: logger, model: model}
}

func (t *tracedGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	n := t.seq.Add(1)
	deadlineIn := "none"
	if d, ok := ctx.Deadline(); ok {
		deadlineIn = time.Until(d).Round(time.Millisecond).String()
	}
	t.logger.Info("llm request",
		zap.Int64("seq", n),
		zap.String("model", t.model),
		zap.Bool("json", req.JSON),
		zap.Bool("grounded", req.Grounded),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.String("deadline_in", deadlineIn))

	start := time.Now()
	resp, err := t.next.Generate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		t.logger.Warn("llm response",
			zap.Int64("seq", n),
			logging.Duration(elapsed),
			zap.String("status", "error"),
			zap.Bool("retryable", worker.IsTransient(err)),
			logging.Err(err))
		return resp, err
	}
	t.logger.Info("llm response",
		zap.Int64("seq", n),
		logging.Duration(elapsed),
		zap.String("status", "ok"),
		zap.Int("text_chars", len(resp.Text)),
		zap.Int("sources", len(resp.Sources)),
		zap.Strings("web_search_queries", resp.Queries))
	return resp, nil
}
