package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	mrand "math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"tradegateway/internal/brokers"
	"tradegateway/internal/brokers/ratelimit"
	"tradegateway/internal/shared"

	"go.uber.org/zap"
)

const (
	maxIdleConnsPerHost = 20
	idleConnTimeout     = 10 * time.Minute
	maxTransportRetries = 3
)

// Request describes one outbound broker call. The access token is supplied
// per call and never cached by the pool.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Form    url.Values // form-encoded body; takes precedence over Body
	Token   string
	APIKey  string // participates in broker-specific auth header schemes
	Headers map[string]string
}

// Response is the raw broker reply.
type Response struct {
	StatusCode int
	Body       []byte
	RequestID  string
	Duration   time.Duration
}

// Pool owns one pooled HTTP client per broker kind. Entries are built
// lazily via compare-and-set and are immutable after insertion.
type Pool struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	mu      sync.Mutex
	clients map[brokers.Kind]*http.Client
}

// NewPool creates the per-broker client pool.
func NewPool(limiter *ratelimit.Limiter, logger *zap.Logger) *Pool {
	return &Pool{
		limiter: limiter,
		logger:  logger,
		clients: make(map[brokers.Kind]*http.Client),
	}
}

// client returns the pooled client for a kind, building it on first use.
func (p *Pool) client(kind brokers.Kind) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[kind]; ok {
		return c
	}

	profile, _ := brokers.ProfileFor(kind)
	transport := &http.Transport{
		MaxIdleConns:        maxIdleConnsPerHost,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		ForceAttemptHTTP2:   false,
		DialContext:         dialContext(profile.ConnectTimeout),
	}

	c := &http.Client{
		Transport: transport,
		Timeout:   profile.ReadTimeout,
		// Follow redirects (default policy).
	}
	p.clients[kind] = c
	return c
}

// Invalidate evicts the cached client for a kind and closes its idle
// connections. The next call rebuilds the client.
func (p *Pool) Invalidate(kind brokers.Kind) {
	p.mu.Lock()
	c, ok := p.clients[kind]
	if ok {
		delete(p.clients, kind)
	}
	p.mu.Unlock()

	if ok {
		if t, ok := c.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
}

// Do executes one broker call through the fixed interceptor chain:
// static headers, auth header, request id, rate-limiter gate, response log.
// Transport-level failures, 429 and 5xx responses are retried up to
// maxTransportRetries times with exponential backoff and jitter inside the
// caller's deadline.
func (p *Pool) Do(ctx context.Context, kind brokers.Kind, req Request) (*Response, error) {
	profile, ok := brokers.ProfileFor(kind)
	if !ok {
		return nil, shared.ErrUnknownBroker.WithDetails("kind", string(kind))
	}

	var bodyBytes []byte
	contentType := ""
	if len(req.Form) > 0 {
		bodyBytes = []byte(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else if req.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, shared.ErrValidation.WithError(fmt.Errorf("marshal request body: %w", err))
		}
		contentType = "application/json"
	}

	fullURL := profile.BaseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= maxTransportRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, shared.ErrTransport.WithError(err)
			}
		}

		resp, err := p.doOnce(ctx, kind, req, fullURL, bodyBytes, contentType)
		if err != nil {
			lastErr = err
			if shared.HasCode(err, shared.ErrCodeRateLimited) {
				return nil, err
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = shared.ErrRateLimited.WithDetails("broker", string(kind))
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = shared.ErrTransport.
				WithDetails("status", resp.StatusCode).
				WithDetails("broker", string(kind))
			continue
		}
		return resp, nil
	}

	return nil, lastErr
}

func (p *Pool) doOnce(ctx context.Context, kind brokers.Kind, req Request, fullURL string, bodyBytes []byte, contentType string) (*Response, error) {
	var bodyReader io.Reader
	if bodyBytes != nil {
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, bodyReader)
	if err != nil {
		return nil, shared.ErrTransport.WithError(err)
	}

	// 1. Broker-specific static headers.
	applyStaticHeaders(httpReq, kind)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if bodyBytes != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	// 2. Auth header, computed per broker scheme, only when a token is supplied.
	if req.Token != "" {
		applyAuthHeader(httpReq, kind, req.APIKey, req.Token)
	}

	// 3. Per-request id.
	requestID := newRequestID()
	httpReq.Header.Set("X-Request-ID", requestID)

	// 4. Rate-limiter gate.
	if err := p.limiter.Acquire(ctx, kind); err != nil {
		return nil, err
	}

	// 5. Execute and log.
	start := time.Now()
	resp, err := p.client(kind).Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		p.logger.Warn("broker call failed",
			zap.String("broker", string(kind)),
			zap.String("method", req.Method),
			zap.String("url", fullURL),
			zap.String("request_id", requestID),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, shared.ErrTransport.WithError(err).WithDetails("broker", string(kind))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.ErrTransport.WithError(err).WithDetails("broker", string(kind))
	}

	p.logger.Debug("broker call",
		zap.String("broker", string(kind)),
		zap.String("method", req.Method),
		zap.String("url", fullURL),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("duration", duration),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		RequestID:  requestID,
		Duration:   duration,
	}, nil
}

// newRequestID generates the TM-<ms>-<rand16> correlation id.
func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Timestamp-only fallback keeps requests traceable.
		return fmt.Sprintf("TM-%d-0000000000000000", time.Now().UnixMilli())
	}
	return fmt.Sprintf("TM-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * 200 * time.Millisecond
	jitter := time.Duration(mrand.Int63n(int64(base / 2)))
	select {
	case <-time.After(base + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
