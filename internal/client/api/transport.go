// Package api implements the HTTP client for the home node and for contact
// nodes reached on behalf of a card. All delta fetches are idempotent GETs;
// mutation endpoints return the new entity revision and are never applied
// speculatively by callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftsync/driftsync/internal/common"
)

const defaultTimeout = 15 * time.Second

// transport is the shared request plumbing: per-call deadline, request rate
// limiting, and response-status to sentinel-error mapping.
type transport struct {
	httpc   *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	scheme  string
}

func newTransport() *transport {
	return &transport{
		httpc:   &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 1),
		timeout: defaultTimeout,
		scheme:  "https",
	}
}

func (t *transport) endpoint(host, path string, query url.Values) string {
	u := url.URL{Scheme: t.scheme, Host: host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs one request. A nil in skips the request body; a nil out skips
// response decoding.
func (t *transport) do(ctx context.Context, method, rawurl string, in, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedDelta, err)
	}
	return nil
}

// upload streams one file as a multipart form POST. No per-call deadline is
// applied; large assets are bounded only by the caller's context.
func (t *transport) upload(ctx context.Context, rawurl, field, filename string, src io.Reader, out any) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile(field, filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, src); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, pr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrTransport, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return decodeBody(resp, out)
}

func decodeBody(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMalformedDelta, err)
	}
	return nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return common.ErrUnauthorized
	case code == http.StatusNotFound:
		return common.ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", common.ErrTransport, code)
	}
}
