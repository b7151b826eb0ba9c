package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

const (
	// frameMaxWidth caps the still's width; aspect ratio is preserved.
	frameMaxWidth = 1280
	// frameJPEGQuality maps to ffmpeg -q:v (2..31, lower is better);
	// 7 lands near the 0.7 quality band the wall thumbnails use.
	frameJPEGQuality = 7
	// frameExtractTimeout bounds the whole decode+seek+rasterize pass.
	frameExtractTimeout = 30 * time.Second

	defaultFrameOffsetSec = 1.0
)

// FrameExtractorService produces a compressed still from a video
// payload at a target timestamp. Offsets past end-of-media clamp to
// the final frame rather than failing. Callers treat any failure as
// cosmetic: the upload flow substitutes a placeholder and continues.
type FrameExtractorService interface {
	ExtractFrame(ctx context.Context, video []byte, offsetSec float64) ([]byte, error)
	ProbeDuration(ctx context.Context, video []byte) (float64, error)
}

type frameExtractorService struct {
	log         *logger.Logger
	ffmpegPath  string
	ffprobePath string
	workRoot    string
}

func NewFrameExtractorService(log *logger.Logger) FrameExtractorService {
	return &frameExtractorService{
		log:         log.With("service", "FrameExtractorService"),
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		workRoot:    "/tmp/tributewall-media",
	}
}

func (s *frameExtractorService) ExtractFrame(ctx context.Context, video []byte, offsetSec float64) ([]byte, error) {
	if len(video) == 0 {
		return nil, fmt.Errorf("%w: empty payload", faults.ErrMediaDecode)
	}
	if err := s.assertBinaries(); err != nil {
		return nil, err
	}
	if offsetSec <= 0 {
		offsetSec = defaultFrameOffsetSec
	}

	ctx, cancel := context.WithTimeout(ctx, frameExtractTimeout)
	defer cancel()

	inPath, cleanupIn, err := s.writeTempFile(video, ".mp4")
	if err != nil {
		return nil, err
	}
	defer cleanupIn()

	if dur, err := s.probeDurationPath(ctx, inPath); err == nil {
		offsetSec = clampSeekOffset(offsetSec, dur)
	}
	// A probe failure is not fatal here: ffmpeg itself clamps a seek
	// past end-of-media to the last decodable frame.

	outPath := inPath + ".jpg"
	defer os.Remove(outPath)

	args := frameExtractArgs(inPath, outPath, offsetSec)
	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, classifyFrameError(ctx, err, string(out))
	}

	still, err := os.ReadFile(outPath)
	if err != nil || len(still) == 0 {
		return nil, fmt.Errorf("%w: no frame produced", faults.ErrMediaDecode)
	}
	return still, nil
}

func (s *frameExtractorService) ProbeDuration(ctx context.Context, video []byte) (float64, error) {
	if err := s.assertBinaries(); err != nil {
		return 0, err
	}
	inPath, cleanup, err := s.writeTempFile(video, ".mp4")
	if err != nil {
		return 0, err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.probeDurationPath(ctx, inPath)
}

func (s *frameExtractorService) probeDurationPath(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("%w: probe: %v", faults.ErrMediaDecode, err)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("%w: unparsable duration", faults.ErrMediaDecode)
	}
	return dur, nil
}

func (s *frameExtractorService) assertBinaries() error {
	for _, bin := range []string{s.ffmpegPath, s.ffprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: missing binary %q", faults.ErrRenderTargetUnavailable, bin)
		}
	}
	return nil
}

func (s *frameExtractorService) writeTempFile(data []byte, suffix string) (string, func(), error) {
	if err := os.MkdirAll(s.workRoot, 0o755); err != nil {
		return "", func() {}, fmt.Errorf("%w: mkdir workRoot: %v", faults.ErrRenderTargetUnavailable, err)
	}
	h := sha256.Sum256(data)
	base := hex.EncodeToString(h[:])[:16]
	path := filepath.Join(s.workRoot, base+suffix)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", func() {}, fmt.Errorf("%w: write temp file: %v", faults.ErrRenderTargetUnavailable, err)
	}
	return path, func() { _ = os.Remove(path) }, nil
}

// clampSeekOffset keeps the seek inside the media. Offsets past the
// end land slightly before the final timestamp so a frame still
// decodes.
func clampSeekOffset(offset, duration float64) float64 {
	if duration <= 0 {
		return offset
	}
	if offset >= duration {
		clamped := duration - 0.1
		if clamped < 0 {
			clamped = 0
		}
		return clamped
	}
	return offset
}

func frameExtractArgs(inPath, outPath string, offsetSec float64) []string {
	return []string{
		"-y",
		"-ss", strconv.FormatFloat(offsetSec, 'f', 3, 64),
		"-i", inPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale='min(%d,iw)':-2", frameMaxWidth),
		"-q:v", strconv.Itoa(frameJPEGQuality),
		outPath,
	}
}

func classifyFrameError(ctx context.Context, err error, output string) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: frame extraction exceeded %s", faults.ErrTimeout, frameExtractTimeout)
	}
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "invalid data"),
		strings.Contains(lower, "moov atom not found"),
		strings.Contains(lower, "could not find codec"),
		strings.Contains(lower, "decoder not found"):
		return fmt.Errorf("%w: %s", faults.ErrMediaDecode, firstLine(output))
	default:
		return fmt.Errorf("%w: ffmpeg: %v: %s", faults.ErrMediaDecode, err, firstLine(output))
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := bytes.IndexByte([]byte(s), '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
