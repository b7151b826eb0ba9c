package httpx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("upstream %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("poll: %w", context.DeadlineExceeded), true},
		{"rate limited", statusErr(429), true},
		{"server error", statusErr(503), true},
		{"bad request", statusErr(400), false},
		{"unauthorized", statusErr(401), false},
		{"plain failure", errors.New("job purged"), false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Errorf("%s: IsRetryableError = %v, want %v", tc.name, got, tc.want)
		}
	}
}
