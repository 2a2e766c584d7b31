package client

import (
	"context"
	"errors"
)

// Sentinel errors a caller can match on regardless of the underlying
// transport failure, so routing code never inspects HTTP status codes.
var (
	ErrNotFound         = errors.New("client: remote key not found")
	ErrUnavailable      = errors.New("client: peer unavailable")
	ErrDeadlineExceeded = errors.New("client: rpc deadline exceeded")
	ErrInternal         = errors.New("client: internal error from peer")
)

func normalizeStatus(status int, transportErr error) error {
	if transportErr != nil {
		if errors.Is(transportErr, context.DeadlineExceeded) {
			return ErrDeadlineExceeded
		}
		return ErrUnavailable
	}
	switch {
	case status == 404:
		return ErrNotFound
	case status >= 500:
		return ErrInternal
	case status >= 400:
		return ErrInternal
	default:
		return nil
	}
}
