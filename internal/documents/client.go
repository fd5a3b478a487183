// Package documents talks to the external renderer that turns estimates
// into work-order, invoice and receipt PDFs.
package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/sprayline/foamops-api/internal/config"
	"github.com/sprayline/foamops-api/internal/domain"
)

// Kind is the document being rendered
type Kind string

const (
	KindWorkOrder Kind = "work_order"
	KindInvoice   Kind = "invoice"
	KindReceipt   Kind = "receipt"
)

// Request is what the renderer consumes
type Request struct {
	Kind     Kind                  `json:"kind"`
	Company  domain.CompanyProfile `json:"company"`
	Estimate domain.EstimateDTO    `json:"estimate"`
}

// Renderer produces a document and returns where it can be fetched.
// An empty URL means nothing was stored.
type Renderer interface {
	Render(ctx context.Context, req Request) (string, error)
}

type renderResponse struct {
	URL string `json:"url"`
}

// Client calls the renderer over HTTP
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	attempts   uint64
	backoff    time.Duration
}

// NewClient creates a renderer client from configuration
func NewClient(cfg *config.DocumentsConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	attempts := uint64(3)
	if cfg.RetryAttempts > 0 {
		attempts = uint64(cfg.RetryAttempts)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		attempts:   attempts,
		backoff:    200 * time.Millisecond,
	}
}

// errStatus marks responses that are worth retrying
type errStatus struct {
	code int
	body string
}

func (e *errStatus) Error() string {
	return fmt.Sprintf("renderer returned status %d: %s", e.code, e.body)
}

// Render posts the estimate and retries server errors with exponential backoff
func (c *Client) Render(ctx context.Context, req Request) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode render request: %w", err)
	}

	var url string
	backoff := retry.WithMaxRetries(c.attempts-1, retry.NewExponential(c.backoff))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		u, err := c.post(ctx, payload)
		if err != nil {
			var se *errStatus
			if errors.As(err, &se) && se.code < 500 {
				return err
			}
			return retry.RetryableError(err)
		}
		url = u
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create render request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call renderer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(io.LimitReader(resp.Body, 4096))
		return "", &errStatus{code: resp.StatusCode, body: strings.TrimSpace(buf.String())}
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode render response: %w", err)
	}
	return out.URL, nil
}

// Disabled is used when no renderer is configured; documents are skipped
type Disabled struct{}

func (Disabled) Render(context.Context, Request) (string, error) {
	return "", nil
}
