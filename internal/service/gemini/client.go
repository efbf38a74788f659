package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	xhttp "FinCast/pkg/http"
	"FinCast/pkg/logger"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

var (
	ErrNoAPIKey      = errors.New("gemini: api key not configured")
	ErrEmptyResponse = errors.New("gemini: response has no text")
)

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// Client calls the generateContent endpoint. It implements the domain
// TextGenerator.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logger.Logger
}

func New(cfg Config, l *logger.Logger, opts ...xhttp.ClientOption) *Client {
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	lim := rate.Inf
	if cfg.RPS > 0 {
		lim = rate.Limit(cfg.RPS)
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(append([]xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}, opts...)...),
		limiter: rate.NewLimiter(lim, cfg.Burst),
		logger:  l,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// client errors (bad key, bad request) say nothing about upstream health
		IsSuccessful: func(err error) bool {
			var se *xhttp.StatusError
			if errors.As(err, &se) {
				return !se.Temporary()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Generate sends prompt as a single user turn and returns the joined text
// of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNoAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("gemini rate limit: %w", err)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		var resp generateResponse
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  "POST",
			URL:     c.endpoint(),
			Headers: map[string]string{"x-goog-api-key": c.cfg.APIKey},
			Body: generateRequest{Contents: []content{{
				Role:  "user",
				Parts: []part{{Text: prompt}},
			}}},
		}, &resp)
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	resp := out.(*generateResponse)
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(c.cfg.Model))
}
