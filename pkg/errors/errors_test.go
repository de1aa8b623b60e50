package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			"op message and cause",
			E(KindNetwork, "github.ListFiles", "request failed", stderrors.New("dial tcp: refused")),
			"github.ListFiles: request failed: dial tcp: refused",
		},
		{
			"op and message",
			E(KindAuthentication, "github.GetPullRequest", "token rejected"),
			"github.GetPullRequest: token rejected",
		},
		{
			"message only",
			New("nothing to review"),
			"nothing to review",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindMatching(t *testing.T) {
	err := E(KindRateLimit, "github.ListFiles", "secondary rate limit")

	if !IsRateLimitError(err) {
		t.Error("IsRateLimitError() = false, want true")
	}
	if IsNotFoundError(err) {
		t.Error("IsNotFoundError() = true, want false")
	}
	if GetKind(err) != KindRateLimit {
		t.Errorf("GetKind() = %v, want KindRateLimit", GetKind(err))
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := E(KindAuthentication, "github.GetPullRequest", "bad credentials")
	outer := fmt.Errorf("fetch pull request: %w", inner)

	if !IsAuthenticationError(outer) {
		t.Error("kind lost through fmt.Errorf wrapping")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "op") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, "pipeline.Review")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}
