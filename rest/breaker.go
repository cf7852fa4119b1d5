// Jellybridge - Go client library for Jellyfin-compatible media servers
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/jellybridge

package rest

import (
	"context"
	"errors"
	"io"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/jellybridge/config"
	"github.com/tomtom215/jellybridge/internal/logging"
	"github.com/tomtom215/jellybridge/internal/metrics"
)

// Doer is the request execution surface shared by Client and
// BreakerClient, so callers can take either.
type Doer interface {
	Do(ctx context.Context, req Request) (json.RawMessage, error)
	DoJSON(ctx context.Context, req Request, out any) error
	Stream(ctx context.Context, req Request, dst io.Writer) (int64, error)
	BuildURL(handler string, params Value) (string, error)
}

var (
	_ Doer = (*Client)(nil)
	_ Doer = (*BreakerClient)(nil)
)

// BreakerClient wraps the request pipeline with a circuit breaker so a
// down server sheds load quickly instead of every caller burning the
// full retry budget.
//
// DETERMINISM NOTE: the breaker uses real time (via sony/gobreaker) for
// its interval and timeout calculations. This is intentional for
// production resilience.
type BreakerClient struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[json.RawMessage]
	name   string
}

// NewBreakerClient wraps client with a circuit breaker tuned from cfg.
func NewBreakerClient(client *Client, cfg config.BreakerConfig) *BreakerClient {
	cbName := "jellybridge-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3, // concurrent probes in half-open state
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= cfg.FailureRatio

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		// Auth failures and malformed URLs are caller problems, not
		// server health signals; only transport-level failures count
		// against the circuit.
		IsSuccessful: func(err error) bool {
			switch KindOf(err) {
			case FailureServerUnreachable, FailureReadTimeout:
				return false
			}
			return true
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps one pipeline call with circuit breaker protection.
func (bc *BreakerClient) execute(fn func() (json.RawMessage, error)) (json.RawMessage, error) {
	result, err := bc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// Do executes the request with circuit breaker protection.
func (bc *BreakerClient) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	return bc.execute(func() (json.RawMessage, error) {
		return bc.client.Do(ctx, req)
	})
}

// DoJSON executes the request with circuit breaker protection and
// decodes the response into out.
func (bc *BreakerClient) DoJSON(ctx context.Context, req Request, out any) error {
	raw, err := bc.Do(ctx, req)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// Stream executes the request with circuit breaker protection, copying
// the body to dst.
func (bc *BreakerClient) Stream(ctx context.Context, req Request, dst io.Writer) (int64, error) {
	var written int64
	_, err := bc.execute(func() (json.RawMessage, error) {
		n, streamErr := bc.client.Stream(ctx, req, dst)
		written = n
		return nil, streamErr
	})
	return written, err
}

// BuildURL is a passthrough; it makes no network call.
func (bc *BreakerClient) BuildURL(handler string, params Value) (string, error) {
	return bc.client.BuildURL(handler, params)
}

// State returns the current circuit breaker state.
func (bc *BreakerClient) State() gobreaker.State {
	return bc.cb.State()
}

// Counts returns the current circuit breaker counts.
func (bc *BreakerClient) Counts() gobreaker.Counts {
	return bc.cb.Counts()
}

// stateToString converts a gobreaker state to a readable label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// stateToFloat converts a gobreaker state to its metric gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
