package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/core"
	"github.com/shpitdev/dossier-outreach/pkg/pipeline/worker"
)

type GeminiConfig struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL    string
	HTTPClient *http.Client

	RateLimitRPS   float64
	MaxRetries     int
	RequestTimeout time.Duration
}

// Gemini calls the Gemini API. Transient failures (429, 5xx, temporary network errors) are
// retried with backoff; every attempt waits on the optional client-side limiter.
type Gemini struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
	retry   worker.Options
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, eris.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, eris.New("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &Gemini{
		client:  client,
		model:   strings.TrimSpace(cfg.Model),
		limiter: worker.NewLimiter(cfg.RateLimitRPS),
		retry: worker.Options{
			MaxRetries:        cfg.MaxRetries,
			RequestTimeout:    cfg.RequestTimeout,
			BackoffInitial:    time.Second,
			BackoffMax:        20 * time.Second,
			BackoffJitterFrac: 0.2,
		},
	}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Response{}, eris.New("gemini: empty prompt")
	}
	return worker.Retry(ctx, g.limiter, g.retry, func(ctx context.Context) (Response, error) {
		return g.generateOnce(ctx, req)
	})
}

func (g *Gemini) generateOnce(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    req.Temperature,
	}
	if req.Grounded {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if req.JSON {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Response{}, classifyErr(err)
	}
	out := Response{Text: strings.TrimSpace(resp.Text())}
	if req.Grounded {
		out.Sources = extractSources(resp)
		out.Queries = extractWebSearchQueries(resp)
	}
	return out, nil
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code/100 == 5 {
			return &core.TransientError{Err: err}
		}
		return eris.Wrap(err, "gemini")
	}
	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || ne.Temporary()) {
		return &core.TransientError{Err: err}
	}
	return eris.Wrap(err, "gemini")
}

func extractSources(resp *genai.GenerateContentResponse) []Source {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	gm := resp.Candidates[0].GroundingMetadata
	if gm == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(gm.GroundingChunks))
	var out []Source
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		uri := strings.TrimSpace(chunk.Web.URI)
		if uri == "" {
			continue
		}
		if _, ok := seen[uri]; ok {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, Source{Title: strings.TrimSpace(chunk.Web.Title), URI: uri})
	}
	return out
}

func extractWebSearchQueries(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil
	}
	c := resp.Candidates[0]
	if c.GroundingMetadata == nil {
		return nil
	}
	return dedupePreserveOrder(c.GroundingMetadata.WebSearchQueries)
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
