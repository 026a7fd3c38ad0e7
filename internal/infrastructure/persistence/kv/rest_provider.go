package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/camr-club/ranking-hub/pkg/retry"
)

// RESTConfig holds settings for the HTTP-based managed KV provider.
// The service exposes Redis-style commands as GET/SET/DEL path segments and
// authenticates with a bearer token.
type RESTConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// RESTProvider adapts the managed HTTP KV service to the Provider interface.
// Transient 5xx responses are retried with backoff; 4xx responses (including
// the daily quota rejection) are returned as-is so the breaker can see them.
type RESTProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// restResponse is the command-envelope the service wraps every reply in.
type restResponse struct {
	Result *string `json:"result"`
	Error  string  `json:"error"`
}

// NewRESTProvider builds a REST provider. The connection is verified lazily;
// the service has no dedicated ping command beyond an ECHO round-trip.
func NewRESTProvider(cfg RESTConfig) (*RESTProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("kv: rest base URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &RESTProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// command issues one command as path segments and decodes the envelope.
func (p *RESTProvider) command(ctx context.Context, segments ...string) (*string, error) {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = url.PathEscape(s)
	}
	endpoint := p.baseURL + "/" + strings.Join(parts, "/")

	var result *string
	err := retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.token)

		resp, err := p.client.Do(req)
		if err != nil {
			return retry.Retryable(err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return retry.Retryable(err)
		}

		if resp.StatusCode >= 500 {
			return retry.Retryable(fmt.Errorf("kv: rest status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}

		var envelope restResponse
		if err := json.Unmarshal(body, &envelope); err != nil {
			return retry.Permanent(fmt.Errorf("kv: rest decode: %w", err))
		}
		if resp.StatusCode != http.StatusOK || envelope.Error != "" {
			msg := envelope.Error
			if msg == "" {
				msg = strings.TrimSpace(string(body))
			}
			return retry.Permanent(fmt.Errorf("kv: rest status %d: %s", resp.StatusCode, msg))
		}

		result = envelope.Result
		return nil
	}, retry.WithMaxAttempts(3))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get implements Provider.
func (p *RESTProvider) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := p.command(ctx, "get", key)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrKeyNotFound
	}
	return []byte(*result), nil
}

// Set implements Provider.
func (p *RESTProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	segments := []string{"set", key, string(value)}
	if ttl > 0 {
		segments = append(segments, "ex", fmt.Sprintf("%d", int(ttl.Seconds())))
	}
	_, err := p.command(ctx, segments...)
	return err
}

// Del implements Provider.
func (p *RESTProvider) Del(ctx context.Context, key string) error {
	_, err := p.command(ctx, "del", key)
	return err
}

// Ping implements Provider.
func (p *RESTProvider) Ping(ctx context.Context) error {
	_, err := p.command(ctx, "echo", "ping")
	return err
}

// Name implements Provider.
func (p *RESTProvider) Name() string {
	return "rest"
}

// Close implements Provider.
func (p *RESTProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
