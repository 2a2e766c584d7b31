package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		transportErr error
		want         error
	}{
		{name: "success", status: 200, want: nil},
		{name: "not found", status: 404, want: ErrNotFound},
		{name: "client error", status: 400, want: ErrInternal},
		{name: "server error", status: 503, want: ErrInternal},
		{name: "transport failure", transportErr: errors.New("connection refused"), want: ErrUnavailable},
		{name: "deadline", transportErr: fmt.Errorf("do: %w", context.DeadlineExceeded), want: ErrDeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeStatus(tt.status, tt.transportErr)
			if !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("normalizeStatus(%d, %v) = %v, want %v", tt.status, tt.transportErr, got, tt.want)
			}
		})
	}
}
