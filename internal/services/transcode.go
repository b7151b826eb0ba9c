package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

const (
	transcodeMaxEdge    = 640
	transcodeFrameRate  = 20
	transcodeMinBitrate = 200_000   // floor, 200 kbps
	transcodeMaxBitrate = 1_000_000 // ceiling, 1 Mbps
	transcodeTimeout    = 10 * time.Minute
)

// codecPreference is probed in order; the first encoder the runtime
// supports wins.
var codecPreference = []codecChoice{
	{encoder: "libx264", container: ".mp4", extraArgs: []string{"-preset", "veryfast", "-movflags", "+faststart"}},
	{encoder: "libvpx-vp9", container: ".webm", extraArgs: []string{"-row-mt", "1"}},
	{encoder: "mpeg4", container: ".mp4", extraArgs: nil},
}

type codecChoice struct {
	encoder   string
	container string
	extraArgs []string
}

// TranscodeService re-encodes an oversized video down to a target
// size: longest edge capped, frame rate dropped, bitrate derived from
// target-size/duration and clamped to the configured band. If no codec
// in the preference list is supported, it fails before any work.
type TranscodeService interface {
	Compress(ctx context.Context, video []byte, targetBytes int64) ([]byte, error)
}

type transcodeService struct {
	log        *logger.Logger
	frames     FrameExtractorService
	ffmpegPath string
	workRoot   string
}

func NewTranscodeService(log *logger.Logger, frames FrameExtractorService) TranscodeService {
	return &transcodeService{
		log:        log.With("service", "TranscodeService"),
		frames:     frames,
		ffmpegPath: "ffmpeg",
		workRoot:   "/tmp/tributewall-media",
	}
}

func (s *transcodeService) Compress(ctx context.Context, video []byte, targetBytes int64) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("%w: empty payload", faults.ErrInvalidArgument)
	}
	if targetBytes <= 0 {
		return nil, fmt.Errorf("%w: target size required", faults.ErrInvalidArgument)
	}

	codec, err := s.pickSupportedCodec(ctx)
	if err != nil {
		return nil, err
	}

	duration, err := s.frames.ProbeDuration(ctx, video)
	if err != nil {
		return nil, err
	}
	bitrate := targetBitrate(targetBytes, duration)

	fes, ok := s.frames.(*frameExtractorService)
	if !ok {
		return nil, fmt.Errorf("%w: transcode requires the ffmpeg frame extractor", faults.ErrRenderTargetUnavailable)
	}
	inPath, cleanupIn, err := fes.writeTempFile(video, ".mp4")
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	outPath := inPath + ".out" + codec.container
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, transcodeTimeout)
	defer cancel()

	args := transcodeArgs(inPath, outPath, codec, bitrate)
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: transcode exceeded %s", faults.ErrTimeout, transcodeTimeout)
		}
		return nil, fmt.Errorf("%w: ffmpeg transcode: %v: %s", faults.ErrMediaDecode, err, firstLine(string(out)))
	}

	result, err := os.ReadFile(outPath)
	if err != nil || len(result) == 0 {
		return nil, fmt.Errorf("%w: no output produced", faults.ErrMediaDecode)
	}
	s.log.Info("Transcode complete",
		"in_bytes", len(video),
		"out_bytes", len(result),
		"bitrate", bitrate,
		"encoder", codec.encoder,
	)
	return result, nil
}

// pickSupportedCodec probes the runtime's encoder list once per call
// so an unsupported runtime fails fast, before decoding anything.
func (s *transcodeService) pickSupportedCodec(ctx context.Context) (codecChoice, error) {
	if _, err := exec.LookPath(s.ffmpegPath); err != nil {
		return codecChoice{}, fmt.Errorf("%w: missing binary %q", faults.ErrRenderTargetUnavailable, s.ffmpegPath)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.ffmpegPath, "-hide_banner", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return codecChoice{}, fmt.Errorf("%w: probe encoders: %v", faults.ErrRenderTargetUnavailable, err)
	}
	codec, ok := pickCodec(string(out), codecPreference)
	if !ok {
		return codecChoice{}, faults.ErrNoSupportedCodec
	}
	return codec, nil
}

func pickCodec(encodersOutput string, prefs []codecChoice) (codecChoice, bool) {
	for _, c := range prefs {
		// ffmpeg lists encoders as " V..... libx264 ..."; a word
		// match avoids false hits on e.g. "libx264rgb".
		for _, line := range strings.Split(encodersOutput, "\n") {
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[1] == c.encoder {
				return c, true
			}
		}
	}
	return codecChoice{}, false
}

// targetBitrate derives video bitrate from the size budget and clamps
// it to the allowed band, so output never exceeds the ceiling.
func targetBitrate(targetBytes int64, durationSec float64) int {
	if durationSec <= 0 {
		return transcodeMinBitrate
	}
	bps := int(float64(targetBytes*8) / durationSec)
	if bps < transcodeMinBitrate {
		return transcodeMinBitrate
	}
	if bps > transcodeMaxBitrate {
		return transcodeMaxBitrate
	}
	return bps
}

func transcodeArgs(inPath, outPath string, codec codecChoice, bitrate int) []string {
	args := []string{
		"-y",
		"-i", inPath,
		"-c:v", codec.encoder,
		"-b:v", strconv.Itoa(bitrate),
		"-maxrate", strconv.Itoa(bitrate),
		"-bufsize", strconv.Itoa(bitrate * 2),
		"-r", strconv.Itoa(transcodeFrameRate),
		"-vf", fmt.Sprintf("scale=w='if(gte(iw,ih),min(%d,iw),-2)':h='if(lt(iw,ih),min(%d,ih),-2)'",
			transcodeMaxEdge, transcodeMaxEdge),
		"-c:a", "aac",
		"-b:a", "64k",
	}
	args = append(args, codec.extraArgs...)
	args = append(args, outPath)
	return args
}
