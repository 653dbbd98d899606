// Package transport implements the HTTP transport shared by every provider
// adapter: retried JSON request execution, header injection driven by
// AdapterContext metadata, and transparent response decompression.
package transport

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

const (
	authBearerTokenKey     = "transport.auth.bearer_token"
	customHeaderPrefix     = "transport.header."
	requestIDHeaderKey     = "transport.request_id_header"
	defaultRequestIDHeader = "x-request-id"
)

// RetryPolicy controls retry attempts and exponential backoff for
// transient HTTP failures.
type RetryPolicy struct {
	MaxAttempts          uint32
	InitialBackoffMs     uint64
	MaxBackoffMs         uint64
	RetryableStatusCodes []int
}

// DefaultRetryPolicy mirrors the runtime's out-of-the-box retry behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          3,
		InitialBackoffMs:     100,
		MaxBackoffMs:         2000,
		RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
	}
}

// Validate checks the policy's invariants, returning a ConfigError describing
// the first violation found.
func (r RetryPolicy) Validate() *coreerrors.ConfigError {
	if r.MaxAttempts == 0 {
		return coreerrors.NewInvalidRetryPolicy("max_attempts must be >= 1")
	}
	if r.MaxBackoffMs < r.InitialBackoffMs {
		return coreerrors.NewInvalidRetryPolicy("max_backoff_ms must be >= initial_backoff_ms")
	}
	for _, status := range r.RetryableStatusCodes {
		if status < 100 || status > 599 {
			return coreerrors.NewInvalidRetryPolicy(fmt.Sprintf("retryable status code must be in 100..=599: %d", status))
		}
	}
	return nil
}

func (r RetryPolicy) shouldRetryStatus(statusCode int) bool {
	for _, s := range r.RetryableStatusCodes {
		if s == statusCode {
			return true
		}
	}
	return false
}

// backoffForRetry computes min(initial * 2^retryIndex, max), saturating on
// overflow rather than wrapping.
func (r RetryPolicy) backoffForRetry(retryIndex uint32) time.Duration {
	shift := retryIndex
	if shift > 63 {
		shift = 63
	}
	multiplier := uint64(1) << shift
	backoffMs := saturatingMul(r.InitialBackoffMs, multiplier)
	if backoffMs > r.MaxBackoffMs {
		backoffMs = r.MaxBackoffMs
	}
	return time.Duration(backoffMs) * time.Millisecond
}

func saturatingMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	product := a * b
	if product/a != b {
		return ^uint64(0)
	}
	return product
}

// HTTPTransport executes JSON requests against provider APIs with retry,
// header injection, and transparent decompression.
type HTTPTransport struct {
	client      *http.Client
	retryPolicy RetryPolicy
	timeoutMs   uint64
}

// New constructs an HTTPTransport, validating timeout and retry policy
// up front so configuration mistakes surface before any request is sent.
func New(timeoutMs uint64, retryPolicy RetryPolicy) (*HTTPTransport, *coreerrors.ConfigError) {
	return NewWithClient(&http.Client{}, timeoutMs, retryPolicy)
}

// NewWithClient is identical to New but lets callers supply their own
// *http.Client (useful for tests that inject a fake RoundTripper).
func NewWithClient(client *http.Client, timeoutMs uint64, retryPolicy RetryPolicy) (*HTTPTransport, *coreerrors.ConfigError) {
	if err := validateTimeout(timeoutMs); err != nil {
		return nil, err
	}
	if err := retryPolicy.Validate(); err != nil {
		return nil, err
	}
	return &HTTPTransport{client: client, retryPolicy: retryPolicy, timeoutMs: timeoutMs}, nil
}

func validateTimeout(timeoutMs uint64) *coreerrors.ConfigError {
	if timeoutMs == 0 {
		return coreerrors.NewInvalidTimeout(timeoutMs)
	}
	return nil
}

// GetJSON issues a GET request and decodes the response body as JSON into
// a value of type T.
func GetJSON[T any](ctx context.Context, t *HTTPTransport, provider types.ProviderID, model *string, url string, adapterCtx types.AdapterContext) (T, *coreerrors.ProviderError) {
	var zero T
	raw, err := t.execute(ctx, provider, model, http.MethodGet, url, nil, adapterCtx)
	if err != nil {
		return zero, err
	}
	return decodeJSON[T](provider, model, raw.requestID, raw.body)
}

// PostJSON serializes body as JSON, POSTs it, and decodes the response body
// as JSON into a value of type TResp.
func PostJSON[TReq any, TResp any](ctx context.Context, t *HTTPTransport, provider types.ProviderID, model *string, url string, body TReq, adapterCtx types.AdapterContext) (TResp, *coreerrors.ProviderError) {
	var zero TResp
	payload, err := json.Marshal(body)
	if err != nil {
		return zero, coreerrors.NewSerializationError(provider, model, nil, err.Error())
	}
	raw, perr := t.execute(ctx, provider, model, http.MethodPost, url, payload, adapterCtx)
	if perr != nil {
		return zero, perr
	}
	return decodeJSON[TResp](provider, model, raw.requestID, raw.body)
}

func decodeJSON[T any](provider types.ProviderID, model *string, requestID *string, body []byte) (T, *coreerrors.ProviderError) {
	var parsed T
	if err := json.Unmarshal(body, &parsed); err != nil {
		return parsed, coreerrors.NewSerializationError(provider, model, requestID, err.Error())
	}
	return parsed, nil
}

type rawResponse struct {
	body      []byte
	requestID *string
}

type headerConfig struct {
	headers         http.Header
	requestIDHeader string
}

func (t *HTTPTransport) execute(ctx context.Context, provider types.ProviderID, model *string, method, url string, body []byte, adapterCtx types.AdapterContext) (rawResponse, *coreerrors.ProviderError) {
	headerCfg := t.buildHeaderConfig(adapterCtx)

	var attempt uint32
	for {
		attempt++

		reqCtx, cancel := context.WithTimeout(ctx, time.Duration(t.timeoutMs)*time.Millisecond)
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, buildErr := http.NewRequestWithContext(reqCtx, method, url, bodyReader)
		if buildErr != nil {
			cancel()
			return rawResponse{}, coreerrors.NewTransportError(provider, nil, buildErr.Error())
		}
		for key, values := range headerCfg.headers {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, sendErr := t.client.Do(req)
		if sendErr != nil {
			cancel()
			if attempt < t.retryPolicy.MaxAttempts && isRetryableTransport(sendErr) {
				t.sleepBeforeRetry(ctx, attempt)
				continue
			}
			return rawResponse{}, coreerrors.NewTransportError(provider, nil, sendErr.Error())
		}

		requestID := extractRequestID(resp.Header, headerCfg.requestIDHeader)
		statusCode := resp.StatusCode

		if statusCode < 200 || statusCode >= 300 {
			statusErr := t.buildStatusError(provider, model, statusCode, requestID, resp)
			resp.Body.Close()
			cancel()
			if attempt < t.retryPolicy.MaxAttempts && t.retryPolicy.shouldRetryStatus(statusCode) {
				t.sleepBeforeRetry(ctx, attempt)
				continue
			}
			return rawResponse{}, statusErr
		}

		bodyBytes, readErr := readDecompressed(resp)
		resp.Body.Close()
		cancel()
		if readErr != nil {
			return rawResponse{}, coreerrors.NewSerializationError(provider, model, requestID, readErr.Error())
		}
		return rawResponse{body: bodyBytes, requestID: requestID}, nil
	}
}

func (t *HTTPTransport) buildStatusError(provider types.ProviderID, model *string, statusCode int, requestID *string, resp *http.Response) *coreerrors.ProviderError {
	bodyBytes, err := readDecompressed(resp)
	var message string
	switch {
	case err != nil:
		message = fmt.Sprintf("http status %d; failed to read response body: %v", statusCode, err)
	case len(bytes.TrimSpace(bodyBytes)) == 0:
		message = fmt.Sprintf("http status %d", statusCode)
	default:
		message = string(bodyBytes)
	}
	return coreerrors.NewStatusError(provider, model, uint16(statusCode), requestID, message)
}

func (t *HTTPTransport) buildHeaderConfig(adapterCtx types.AdapterContext) headerConfig {
	requestIDHeader := defaultRequestIDHeader
	if value, ok := adapterCtx.Metadata[requestIDHeaderKey]; ok {
		requestIDHeader = value
	}

	headers := http.Header{}
	if token, ok := adapterCtx.Metadata[authBearerTokenKey]; ok {
		headers.Set("Authorization", "Bearer "+token)
	}

	for _, key := range adapterCtx.Metadata.SortedKeys() {
		if rawName, found := strings.CutPrefix(key, customHeaderPrefix); found {
			headers.Set(rawName, adapterCtx.Metadata[key])
		}
	}

	return headerConfig{headers: headers, requestIDHeader: requestIDHeader}
}

func (t *HTTPTransport) sleepBeforeRetry(ctx context.Context, attempt uint32) {
	retryIndex := attempt - 1
	backoff := t.retryPolicy.backoffForRetry(retryIndex)
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func extractRequestID(headers http.Header, requestIDHeader string) *string {
	value := headers.Get(requestIDHeader)
	if value == "" {
		return nil
	}
	return &value
}

func isRetryableTransport(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connect") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}

func readDecompressed(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	}
	return io.ReadAll(reader)
}

// NewRequestID synthesizes a fallback request id (uuid v4) for callers that
// need one when a provider response omits its own.
func NewRequestID() string {
	return uuid.NewString()
}
