// Package feed drives the vertically-snapping media wall: per-session
// playback scheduling, bandwidth-aware prefetch, and scroll/keyboard
// navigation. The engine is a pure state machine; the rendering layer
// reports what it sees and executes the commands the engine emits.
package feed

import "strings"

// ConnectionQuality buckets the client's network into three prefetch
// tiers. Classification is best-effort; absent signals default to
// medium rather than penalizing the session.
type ConnectionQuality string

const (
	ConnectionSlow   ConnectionQuality = "slow"
	ConnectionMedium ConnectionQuality = "medium"
	ConnectionFast   ConnectionQuality = "fast"
)

// ConnectionSignals mirrors what the Network Information API exposes.
// Zero values mean "not reported".
type ConnectionSignals struct {
	EffectiveType string  `json:"effective_type,omitempty"` // slow-2g | 2g | 3g | 4g
	DownlinkMbps  float64 `json:"downlink_mbps,omitempty"`
	Category      string  `json:"category,omitempty"` // cellular | wifi | ethernet
}

// ClassifyConnection folds the available signals into a quality tier.
// The effective type wins when present; downlink refines, category is
// the weakest hint.
func ClassifyConnection(sig ConnectionSignals) ConnectionQuality {
	switch strings.ToLower(strings.TrimSpace(sig.EffectiveType)) {
	case "slow-2g", "2g":
		return ConnectionSlow
	case "3g":
		return ConnectionMedium
	case "4g":
		if sig.DownlinkMbps > 0 && sig.DownlinkMbps < 1.5 {
			return ConnectionMedium
		}
		return ConnectionFast
	}

	if sig.DownlinkMbps > 0 {
		switch {
		case sig.DownlinkMbps < 0.5:
			return ConnectionSlow
		case sig.DownlinkMbps < 5:
			return ConnectionMedium
		default:
			return ConnectionFast
		}
	}

	switch strings.ToLower(strings.TrimSpace(sig.Category)) {
	case "ethernet":
		return ConnectionFast
	case "cellular":
		return ConnectionMedium
	}
	return ConnectionMedium
}

// Fanout is the prefetch-ahead count for the tier.
func (q ConnectionQuality) Fanout() int {
	switch q {
	case ConnectionSlow:
		return 1
	case ConnectionFast:
		return 3
	default:
		return 2
	}
}

// PrefetchBehind reports whether the tier warms one item behind the
// active one as well.
func (q ConnectionQuality) PrefetchBehind() bool {
	return q == ConnectionFast
}
