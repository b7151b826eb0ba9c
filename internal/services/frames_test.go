package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

func TestClampSeekOffset(t *testing.T) {
	cases := []struct {
		offset, duration, want float64
	}{
		{1.0, 10.0, 1.0},
		{10.0, 10.0, 9.9},
		{25.0, 10.0, 9.9},
		{0.05, 0.05, 0},
		{3.0, 0, 3.0}, // unknown duration leaves the offset alone
	}
	for _, tc := range cases {
		if got := clampSeekOffset(tc.offset, tc.duration); got != tc.want {
			t.Errorf("clampSeekOffset(%.2f, %.2f) = %.2f, want %.2f",
				tc.offset, tc.duration, got, tc.want)
		}
	}
}

func TestFrameExtractArgs(t *testing.T) {
	args := frameExtractArgs("in.mp4", "out.jpg", 2.5)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-ss 2.500") {
		t.Fatalf("seek offset missing: %v", args)
	}
	if !strings.Contains(joined, "-frames:v 1") {
		t.Fatalf("single-frame flag missing: %v", args)
	}
	if !strings.Contains(joined, "min(1280,iw)") {
		t.Fatalf("width cap missing: %v", args)
	}
}

func TestClassifyFrameError(t *testing.T) {
	ctx := context.Background()

	err := classifyFrameError(ctx, errors.New("exit status 1"),
		"in.mp4: Invalid data found when processing input")
	if !errors.Is(err, faults.ErrMediaDecode) {
		t.Fatalf("corrupt input: got %v, want MediaDecode", err)
	}

	timedOut, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	<-timedOut.Done()
	err = classifyFrameError(timedOut, errors.New("signal: killed"), "")
	if !errors.Is(err, faults.ErrTimeout) {
		t.Fatalf("deadline: got %v, want Timeout", err)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("one\ntwo\nthree"); got != "one" {
		t.Fatalf("firstLine = %q", got)
	}
	if got := firstLine("  solo  "); got != "solo" {
		t.Fatalf("firstLine = %q", got)
	}
}
