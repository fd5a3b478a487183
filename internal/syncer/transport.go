package syncer

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

// ErrRejected marks a push or pull the server refused outright. Retrying will not help.
var ErrRejected = errors.New("rejected by server")

// Transport moves whole tenant snapshots between the device and the server
type Transport interface {
	// Pull returns the raw snapshot JSON so it can be decoded over defaults
	Pull(ctx context.Context) ([]byte, error)
	Push(ctx context.Context, snap *domain.TenantSnapshot) (*domain.PushResult, error)
}

// SnapshotPath is the API route serving pull (GET) and push (PUT)
const SnapshotPath = "/api/v1/sync/snapshot"

// HTTPTransport talks to the API's snapshot endpoint
type HTTPTransport struct {
	client   *http.Client
	baseURL  string
	token    string
	attempts uint64
	base     time.Duration
}

// NewHTTPTransport creates a transport from the sync client configuration
func NewHTTPTransport(cfg *config.SyncConfig) *HTTPTransport {
	attempts := uint64(3)
	if cfg.RetryAttempts > 0 {
		attempts = uint64(cfg.RetryAttempts)
	}
	base := cfg.RetryBase()
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &HTTPTransport{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(cfg.ServerURL, "/"),
		token:    cfg.Token,
		attempts: attempts,
		base:     base,
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("sync endpoint returned status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error {
	if e.code >= 400 && e.code < 500 && e.code != http.StatusTooManyRequests {
		return ErrRejected
	}
	return nil
}

func (t *HTTPTransport) Pull(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := t.do(ctx, func(ctx context.Context) error {
		body, err := t.send(ctx, http.MethodGet, nil)
		if err != nil {
			return err
		}
		raw = body
		return nil
	})
	return raw, err
}

func (t *HTTPTransport) Push(ctx context.Context, snap *domain.TenantSnapshot) (*domain.PushResult, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	var result domain.PushResult
	err = t.do(ctx, func(ctx context.Context) error {
		body, err := t.send(ctx, http.MethodPut, payload)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to decode push result: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// do retries transport failures and server errors with exponential backoff
func (t *HTTPTransport) do(ctx context.Context, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(t.attempts-1, retry.NewExponential(t.base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrRejected) {
			return err
		}
		return retry.RetryableError(err)
	})
}

func (t *HTTPTransport) send(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+SnapshotPath, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach sync endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read sync response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &statusError{code: resp.StatusCode, body: msg}
	}
	return data, nil
}
