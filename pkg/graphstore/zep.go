package graphstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/soundprediction/go-zepsync/pkg/record"
)

const defaultZepBaseURL = "https://api.getzep.com"

// ZepConfig holds settings for the Zep Cloud graph API.
type ZepConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerSecond caps the request rate; zero disables limiting.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker. BreakerCooldown is how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	Headers map[string]string
}

// APIError is returned for non-2xx responses other than 404.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("zep API request failed with status %d: %s", e.StatusCode, e.Body)
}

// ZepClient implements Client against the Zep Cloud v2 REST API.
type ZepClient struct {
	config     *ZepConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

var _ Client = (*ZepClient)(nil)

// NewZepClient creates a new Zep graph client.
func NewZepClient(config *ZepConfig, logger *slog.Logger) (*ZepClient, error) {
	if config == nil || config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultZepBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}
	if config.BreakerCooldown == 0 {
		config.BreakerCooldown = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	failures := config.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "zep",
		Timeout: config.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A missing element is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &ZepClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: limiter,
		breaker: breaker,
		logger:  logger,
	}, nil
}

type listRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ListNodes implements Client.
func (z *ZepClient) ListNodes(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	body, err := z.do(ctx, http.MethodPost, "/api/v2/graph/node/graph/"+url.PathEscape(graphID), listRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of graph %s: %w", graphID, err)
	}
	return z.decodeList(body, record.KindNode)
}

// ListEdges implements Client.
func (z *ZepClient) ListEdges(ctx context.Context, graphID string, limit int) ([]record.Record, error) {
	body, err := z.do(ctx, http.MethodPost, "/api/v2/graph/edge/graph/"+url.PathEscape(graphID), listRequest{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges of graph %s: %w", graphID, err)
	}
	return z.decodeList(body, record.KindEdge)
}

// GetNode implements Client. Zep addresses nodes by uuid alone.
func (z *ZepClient) GetNode(ctx context.Context, graphID, uuid string) (record.Record, error) {
	return z.get(ctx, "/api/v2/graph/node/", uuid, record.KindNode)
}

// GetEdge implements Client. Zep addresses edges by uuid alone.
func (z *ZepClient) GetEdge(ctx context.Context, graphID, uuid string) (record.Record, error) {
	return z.get(ctx, "/api/v2/graph/edge/", uuid, record.KindEdge)
}

// DeleteNode implements Client.
func (z *ZepClient) DeleteNode(ctx context.Context, graphID, uuid string) error {
	if _, err := z.do(ctx, http.MethodDelete, "/api/v2/graph/node/"+url.PathEscape(uuid), nil); err != nil {
		return z.wrapNotFound(err, record.KindNode, uuid)
	}
	return nil
}

// DeleteEdge implements Client.
func (z *ZepClient) DeleteEdge(ctx context.Context, graphID, uuid string) error {
	if _, err := z.do(ctx, http.MethodDelete, "/api/v2/graph/edge/"+url.PathEscape(uuid), nil); err != nil {
		return z.wrapNotFound(err, record.KindEdge, uuid)
	}
	return nil
}

// Ping lists graphs as a cheap authenticated round trip.
func (z *ZepClient) Ping(ctx context.Context) error {
	if _, err := z.do(ctx, http.MethodGet, "/api/v2/graph/list-all?pageSize=1", nil); err != nil {
		return fmt.Errorf("zep health check failed: %w", err)
	}
	return nil
}

// Close cleans up any resources.
func (z *ZepClient) Close(ctx context.Context) error {
	z.httpClient.CloseIdleConnections()
	return nil
}

func (z *ZepClient) get(ctx context.Context, prefix, uuid string, kind record.Kind) (record.Record, error) {
	body, err := z.do(ctx, http.MethodGet, prefix+url.PathEscape(uuid), nil)
	if err != nil {
		return record.Record{}, z.wrapNotFound(err, kind, uuid)
	}

	var m map[string]any
	if err := z.unmarshal(body, &m); err != nil {
		return record.Record{}, fmt.Errorf("failed to decode %s %s: %w", kind, uuid, err)
	}
	if m == nil {
		return record.Record{}, notFound(kind, uuid)
	}
	return record.FromMap(kind, m), nil
}

func (z *ZepClient) wrapNotFound(err error, kind record.Kind, uuid string) error {
	if errors.Is(err, ErrNotFound) {
		return notFound(kind, uuid)
	}
	return fmt.Errorf("%s %s: %w", kind, uuid, err)
}

func (z *ZepClient) decodeList(body []byte, kind record.Kind) ([]record.Record, error) {
	var items []map[string]any
	if err := z.unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
	}

	records := make([]record.Record, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		records = append(records, record.FromMap(kind, item))
	}
	return records, nil
}

// unmarshal decodes a response body, repairing malformed JSON once before
// giving up.
func (z *ZepClient) unmarshal(body []byte, v any) error {
	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(body))
	if repairErr != nil {
		return err
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return err
	}
	z.logger.Debug("Repaired malformed response body", "bytes", len(body))
	return nil
}

// do performs one rate-limited request through the circuit breaker.
func (z *ZepClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	if err := z.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := z.breaker.Execute(func() (interface{}, error) {
		return z.roundTrip(ctx, method, path, payload)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (z *ZepClient) roundTrip(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, z.config.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Api-Key "+z.config.APIKey)
	for key, value := range z.config.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := z.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
