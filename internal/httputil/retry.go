// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers for stages that call external
// APIs.
package httputil

import (
	"io"
	"math"
	"net/http"
	"time"
)

// RetryBaseDelay controls the base duration for exponential backoff on
// HTTP 429 responses. Tests override this to avoid real sleeps.
var RetryBaseDelay = 10 * time.Second

const defaultMaxRetries = 5

// RetryTransport is an http.RoundTripper that retries on HTTP 429 (Too
// Many Requests) with exponential backoff. The delay starts at
// RetryBaseDelay (10 s) and doubles each attempt: 10 s, 20 s, 40 s,
// 80 s, 160 s. It wraps Base (http.DefaultTransport when nil) so it
// can be installed as the transport of any client, including the
// embeddings API client.
type RetryTransport struct {
	Base       http.RoundTripper
	MaxRetries int
}

// RoundTrip executes the request, replaying the body via GetBody on
// each retry. Requests without a body are retried with a plain clone.
// A request whose body cannot be replayed is not retried;
// the 429 response is returned as-is. If the request context is
// cancelled during a backoff wait, the context error is returned.
// After exhausting retries the last 429 response is returned so the
// caller can inspect it.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	maxRetries := t.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	for attempt := 0; ; attempt++ {
		attemptReq := req
		if attempt > 0 {
			attemptReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				attemptReq.Body = body
			}
		}

		resp, err := base.RoundTrip(attemptReq)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		// Exhausted retries, or a body we cannot replay.
		if attempt >= maxRetries || (req.Body != nil && req.GetBody == nil) {
			return resp, nil
		}

		// Drain and close the body before retrying.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		backoff := time.Duration(math.Pow(2, float64(attempt))) * RetryBaseDelay

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(backoff):
		}
	}
}
