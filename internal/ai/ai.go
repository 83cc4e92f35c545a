// Package ai generates daily gold-rate blog posts through an LLM provider.
//
// Providers return raw model text; Decode turns it into a GeneratedPost and
// rejects anything that is not a JSON object carrying every required field.
// Transport and non-2xx failures wrap ErrUpstream, undecodable or incomplete
// output wraps ErrMalformedResponse, so callers can tell the two apart.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tbourn/goldrate-backend/internal/config"
)

var (
	ErrUpstream          = errors.New("ai upstream error")
	ErrMalformedResponse = errors.New("ai malformed response")
	ErrNotConfigured     = errors.New("ai not configured")
)

// PostRequest carries the facts a post is written from.
type PostRequest struct {
	City      string
	Date      string // YYYY-MM-DD
	Price22K  float64
	Price24K  float64
	Change22K float64 // vs previous quote; 0 when unknown
	Change24K float64
}

// GeneratedPost is the validated generator output.
type GeneratedPost struct {
	Title          string `json:"title"`
	SEOTitle       string `json:"seo_title"`
	SEODescription string `json:"seo_description"`
	SEOKeywords    string `json:"seo_keywords"`
	Excerpt        string `json:"excerpt"`
	Content        string `json:"content"`
}

// Generator produces one post per request.
type Generator interface {
	GeneratePost(ctx context.Context, req PostRequest) (GeneratedPost, error)
}

// New creates a Generator for cfg.Provider.
func New(cfg config.AIConfig) (Generator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	client := &http.Client{Timeout: cfg.Timeout}

	switch cfg.Provider {
	case "anthropic", "claude":
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return &anthropicProvider{apiKey: cfg.APIKey, model: model, maxTokens: 4096, prompt: anthropicPrompt}, nil
	case "openai", "":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		if base == "" {
			base = "https://api.openai.com/v1"
		}
		return &openaiProvider{apiKey: cfg.APIKey, model: model, baseURL: base, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: openai, anthropic)", cfg.Provider)
	}
}

const systemPrompt = `You write short, factual daily gold rate updates for a Tamil Nadu jewellery price website.
Use Indian English and the rupee symbol. Never invent prices: use only the figures given.
Respond with a single JSON object and nothing else, with exactly these string fields:
"title", "seo_title" (max 60 chars), "seo_description" (max 160 chars),
"seo_keywords" (comma-separated), "excerpt" (one or two sentences),
"content" (HTML using <h2>, <p>, <ul>, <table> only).`

const userPromptTemplate = `City: %s
Date: %s
22 carat gold: ₹%.2f per gram (₹%.2f per 8 grams)%s
24 carat gold: ₹%.2f per gram (₹%.2f per 8 grams)%s

Write today's gold rate post for %s.`

// UserPrompt renders the per-request prompt.
func UserPrompt(r PostRequest) string {
	return fmt.Sprintf(userPromptTemplate,
		r.City, r.Date,
		r.Price22K, r.Price22K*8, changeNote(r.Change22K),
		r.Price24K, r.Price24K*8, changeNote(r.Change24K),
		r.City,
	)
}

func changeNote(d float64) string {
	switch {
	case d > 0:
		return fmt.Sprintf(", up ₹%.2f from the previous day", d)
	case d < 0:
		return fmt.Sprintf(", down ₹%.2f from the previous day", -d)
	default:
		return ""
	}
}

// Decode parses model output into a GeneratedPost. Markdown code fences
// around the object are tolerated; anything else is ErrMalformedResponse.
func Decode(text string) (GeneratedPost, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return GeneratedPost{}, fmt.Errorf("%w: empty output", ErrMalformedResponse)
	}

	var p GeneratedPost
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&p); err != nil {
		return GeneratedPost{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return GeneratedPost{}, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}

	p.Title = strings.TrimSpace(p.Title)
	p.SEOTitle = strings.TrimSpace(p.SEOTitle)
	p.SEODescription = strings.TrimSpace(p.SEODescription)
	p.SEOKeywords = strings.TrimSpace(p.SEOKeywords)
	p.Excerpt = strings.TrimSpace(p.Excerpt)
	p.Content = strings.TrimSpace(p.Content)

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"title", p.Title},
		{"seo_title", p.SEOTitle},
		{"seo_description", p.SEODescription},
		{"seo_keywords", p.SEOKeywords},
		{"excerpt", p.Excerpt},
		{"content", p.Content},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return GeneratedPost{}, fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}
	return p, nil
}
