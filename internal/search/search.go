// Package search issues keyword queries to web-search backends and normalizes the hits into
// one Result shape.
package search

import (
	"context"
	"time"
)

// Type tags why a query was issued.
type Type string

const (
	TypeProspect           Type = "prospect_specific"
	TypeProspectAdditional Type = "prospect_specific_additional"
	TypeIndustryDetection  Type = "industry_detection"
	TypeCompanyResearch    Type = "company_research"
)

// Result is one normalized search hit.
type Result struct {
	Source     string    `json:"source"`
	Query      string    `json:"query"`
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Snippet    string    `json:"snippet"`
	Timestamp  time.Time `json:"timestamp"`
	SearchType Type      `json:"search_type"`
}

// Hit is what a backend returns before the provider stamps it.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Backend is one web-search implementation. Backends fail independently.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Hit, error)
}

// Query is one provider request.
type Query struct {
	Text       string
	MaxResults int
	Type       Type
}

// Batch is the outcome of one query across every backend.
type Batch struct {
	Results []Result
	// Attempted and Succeeded count backend calls.
	Attempted int
	Succeeded int
	Errors    []error
}

// Provider runs a query against one or more backends. It never fails as a whole: backend
// errors are collected in the Batch.
type Provider interface {
	Search(ctx context.Context, q Query) Batch
}
