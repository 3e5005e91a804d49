// Package analytics emits best-effort behavioural events. Delivery failures
// are logged and never surfaced to the caller.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultEmitTimeout = 5 * time.Second

// Event is a single behavioural signal.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Emitter publishes events.
type Emitter interface {
	Emit(ctx context.Context, name string, properties map[string]any)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(context.Context, string, map[string]any) {}

// HTTPEmitterConfig configures the HTTPEmitter.
type HTTPEmitterConfig struct {
	Endpoint   string
	Key        string
	HTTPClient *http.Client
	Logger     *zap.Logger
	Clock      func() time.Time
}

// HTTPEmitter posts events to a capture endpoint.
type HTTPEmitter struct {
	endpoint string
	key      string
	http     *http.Client
	logger   *zap.Logger
	clock    func() time.Time
}

// NewHTTPEmitter constructs an emitter for the given capture endpoint.
func NewHTTPEmitter(cfg HTTPEmitterConfig) (*HTTPEmitter, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("analytics: endpoint is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultEmitTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &HTTPEmitter{
		endpoint: cfg.Endpoint,
		key:      cfg.Key,
		http:     httpClient,
		logger:   logger,
		clock:    clock,
	}, nil
}

// Emit implements the Emitter interface. Fire and forget.
func (e *HTTPEmitter) Emit(ctx context.Context, name string, properties map[string]any) {
	event := Event{
		ID:         uuid.NewString(),
		Name:       name,
		Properties: properties,
		Timestamp:  e.clock().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		e.logger.Warn("analytics event encode failed", zap.String("event", name), zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("analytics request build failed", zap.String("event", name), zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if e.key != "" {
		req.Header.Set("Authorization", "Bearer "+e.key)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		e.logger.Warn("analytics delivery failed", zap.String("event", name), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		e.logger.Warn("analytics endpoint rejected event",
			zap.String("event", name),
			zap.Int("status", resp.StatusCode),
		)
	}
}
