package search

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// The Custom Search JSON API returns at most 10 items per request.
const maxCSEResults = 10

// GoogleCSE is the structured API backend (Programmable Search Engine).
type GoogleCSE struct {
	svc      *customsearch.Service
	engineID string
}

// NewGoogleCSE builds the backend. Extra options (endpoint, HTTP client) are for tests.
func NewGoogleCSE(ctx context.Context, apiKey, engineID string, opts ...option.ClientOption) (*GoogleCSE, error) {
	if apiKey == "" || engineID == "" {
		return nil, eris.New("google cse: api key and engine id are required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "google cse: new service")
	}
	return &GoogleCSE{svc: svc, engineID: engineID}, nil
}

func (g *GoogleCSE) Name() string { return "Google" }

func (g *GoogleCSE) Search(ctx context.Context, query string, maxResults int) ([]Hit, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	num := maxResults
	if num > maxCSEResults {
		num = maxCSEResults
	}
	res, err := g.svc.Cse.List().Cx(g.engineID).Q(query).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return nil, eris.Wrap(err, "google cse: list")
	}
	hits := make([]Hit, 0, len(res.Items))
	for _, it := range res.Items {
		if it == nil || it.Link == "" {
			continue
		}
		hits = append(hits, Hit{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return hits, nil
}
