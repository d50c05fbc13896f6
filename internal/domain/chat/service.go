package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/browser"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/cache"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/guard"
	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/scraper"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// UserAgent identifies content fetches made for the chat responder.
const UserAgent = "Mozilla/5.0 (compatible; ChatbotRAG/1.0)"

// FailureMessage is shown in the widget when an answer cannot be produced.
const FailureMessage = "I'm sorry, I encountered an error. Please try again."

// Validator decides whether a URL may be fetched.
type Validator interface {
	Validate(raw string) guard.Verdict
}

// Request is a widget chat message.
type Request struct {
	ClientID string    `json:"client_id"`
	Message  string    `json:"message"`
	URL      string    `json:"url"`
	History  []Message `json:"history,omitempty"`
}

// Service loads page content and answers questions about it.
type Service struct {
	guard     Validator
	fetcher   browser.Fetcher
	cache     *cache.Cache
	responder *Responder
	logger    *zap.Logger
}

// NewService wires the chat service. A nil responder uses NewResponder.
func NewService(v Validator, f browser.Fetcher, c *cache.Cache, r *Responder, logger *zap.Logger) *Service {
	if r == nil {
		r = NewResponder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{guard: v, fetcher: f, cache: c, responder: r, logger: logger}
}

// Answer replies to req.Message about the page at req.URL.
func (s *Service) Answer(ctx context.Context, req Request) (Answer, error) {
	start := time.Now()

	content, err := s.Content(ctx, req.URL)
	if err != nil {
		return Answer{}, err
	}

	ans := s.responder.Respond(content, req.Message)
	s.logger.Info("Chat answered",
		zap.String("client_id", req.ClientID),
		zap.String("url", req.URL),
		zap.Int("history", len(req.History)),
		zap.Int("sources", len(ans.Sources)),
		zap.Duration("duration", time.Since(start)),
	)
	return ans, nil
}

// Content returns the extracted content of pageURL, loading and caching
// it on a miss.
func (s *Service) Content(ctx context.Context, pageURL string) (*scraper.Content, error) {
	if err := s.guard.Validate(pageURL).Err(); err != nil {
		return nil, err
	}

	raw, hit, err := s.cache.Fetch(ctx, cache.KindContent, s.cache.ContentKey(pageURL), false, func(ctx context.Context) ([]byte, error) {
		s.logger.Info("No cached content, fetching", zap.String("url", pageURL))
		return s.extract(ctx, pageURL)
	})
	if err != nil {
		return nil, err
	}

	var content scraper.Content
	if err := sonic.Unmarshal(raw, &content); err != nil {
		if hit {
			// a corrupt entry is treated as a miss
			s.cache.Delete(ctx, s.cache.ContentKey(pageURL))
			if raw, err = s.extract(ctx, pageURL); err == nil {
				err = sonic.Unmarshal(raw, &content)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
	}
	return &content, nil
}

func (s *Service) extract(ctx context.Context, pageURL string) ([]byte, error) {
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := browser.Parse(page)
	if err != nil {
		return nil, err
	}
	return sonic.Marshal(scraper.Extract(doc, pageURL))
}
