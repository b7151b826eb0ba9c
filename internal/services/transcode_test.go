package services

import (
	"strconv"
	"strings"
	"testing"
)

func TestTargetBitrateClampsToBand(t *testing.T) {
	insideBandDuration := 60.0
	cases := []struct {
		name        string
		targetBytes int64
		durationSec float64
		want        int
	}{
		{"inside band", 5 << 20, 60, int(float64(5<<20*8) / insideBandDuration)},
		{"floor", 1 << 20, 600, transcodeMinBitrate},
		{"ceiling", 100 << 20, 30, transcodeMaxBitrate},
		{"zero duration floors", 10 << 20, 0, transcodeMinBitrate},
	}
	for _, tc := range cases {
		if got := targetBitrate(tc.targetBytes, tc.durationSec); got != tc.want {
			t.Errorf("%s: targetBitrate(%d, %.0f) = %d, want %d",
				tc.name, tc.targetBytes, tc.durationSec, got, tc.want)
		}
	}
}

const sampleEncoders = ` Encoders:
 V..... = Video
 ------
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 V..... libx264rgb           libx264 H.264 RGB (codec h264)
 V....D mpeg4                MPEG-4 part 2
 A....D aac                  AAC (Advanced Audio Coding)
`

func TestPickCodecHonorsPreferenceOrder(t *testing.T) {
	codec, ok := pickCodec(sampleEncoders, codecPreference)
	if !ok {
		t.Fatalf("no codec picked from sample output")
	}
	// libx264 is absent (libx264rgb must not match); vp9 is next.
	if codec.encoder != "libvpx-vp9" {
		t.Fatalf("picked %q, want libvpx-vp9", codec.encoder)
	}
}

func TestPickCodecNoneSupported(t *testing.T) {
	if _, ok := pickCodec(" V....D av1_nvenc\n", codecPreference); ok {
		t.Fatalf("picked a codec from output containing none of the preferences")
	}
}

func TestTranscodeArgsCapEdgeAndRate(t *testing.T) {
	args := transcodeArgs("in.mp4", "out.mp4", codecPreference[0], 450_000)
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-r "+strconv.Itoa(transcodeFrameRate)) {
		t.Fatalf("frame rate missing from args: %v", args)
	}
	if !strings.Contains(joined, "-b:v 450000") || !strings.Contains(joined, "-maxrate 450000") {
		t.Fatalf("bitrate cap missing from args: %v", args)
	}
	if !strings.Contains(joined, "min(640,iw)") || !strings.Contains(joined, "min(640,ih)") {
		t.Fatalf("longest-edge scale expression missing: %v", args)
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("output path must come last: %v", args)
	}
}
