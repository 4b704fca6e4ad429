package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRemoteServiceErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *RemoteServiceError
		want string
	}{
		{
			name: "status with body",
			err:  &RemoteServiceError{Op: "upload", StatusCode: 500, Body: "boom"},
			want: "remini: upload: status 500: boom",
		},
		{
			name: "transport error",
			err:  &RemoteServiceError{Op: "create", Err: errors.New("connection reset")},
			want: "remini: create: connection reset",
		},
		{
			name: "bare status",
			err:  &RemoteServiceError{Op: "poll", StatusCode: 404},
			want: "remini: poll: status 404",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRemoteServiceErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	wrapped := fmt.Errorf("enhance: %w", &RemoteServiceError{Op: "process", Err: cause})

	var remote *RemoteServiceError
	if !errors.As(wrapped, &remote) {
		t.Fatalf("expected RemoteServiceError in chain")
	}
	if remote.Op != "process" {
		t.Fatalf("Op = %q, want process", remote.Op)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestOversizeInputErrorLimitMB(t *testing.T) {
	err := &OversizeInputError{Size: 6 * 1024 * 1024, Limit: 5 * 1024 * 1024}
	if err.LimitMB() != 5 {
		t.Fatalf("LimitMB = %d, want 5", err.LimitMB())
	}
	if !strings.Contains(err.Error(), "limit") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestEnhancementJobTerminal(t *testing.T) {
	job := &EnhancementJob{Status: JobStatusProcessing}
	if job.Terminal() {
		t.Fatalf("processing must not be terminal")
	}
	job.Status = JobStatusCompleted
	if !job.Terminal() {
		t.Fatalf("completed must be terminal")
	}
}
