package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/feed"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/services"
)

type FeedHandler struct {
	log      *logger.Logger
	sessions *feed.SessionManager
	media    services.MediaService
}

func NewFeedHandler(log *logger.Logger, sessions *feed.SessionManager, media services.MediaService) *FeedHandler {
	return &FeedHandler{
		log:      log.With("handler", "FeedHandler"),
		sessions: sessions,
		media:    media,
	}
}

// OpenSession starts a feed session over the current wall order (or an
// explicit item list) and mounts the scheduler. The first command
// batch is returned inline so the client can start without a second
// round trip.
func (h *FeedHandler) OpenSession(c *gin.Context) {
	var body struct {
		MediaIDs   []uuid.UUID            `json:"media_ids"`
		Connection feed.ConnectionSignals `json:"connection"`
		Muted      *bool                  `json:"muted"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	items := body.MediaIDs
	if len(items) == 0 {
		assets, err := h.media.List(c.Request.Context(), 0, 0)
		if err != nil {
			RespondFault(c, "failed to load wall", err)
			return
		}
		for _, a := range assets {
			items = append(items, a.ID)
		}
	}

	muted := true
	if body.Muted != nil {
		muted = *body.Muted
	}
	sess := h.sessions.Open(items, body.Connection, muted)

	var active int
	var empty bool
	sess.With(func(s *feed.Scheduler) {
		active = s.ActiveIndex()
		empty = s.Empty()
	})
	c.JSON(http.StatusCreated, gin.H{
		"session_id":   sess.ID,
		"active_index": active,
		"empty":        empty,
		"commands":     sess.Drain(),
	})
}

type feedEventBody struct {
	Type  string  `json:"type"` // visibility | scroll | keyboard | playback_ready | decode_error | mute
	Index int     `json:"index"`
	Ratio float64 `json:"ratio"`
	Delta int     `json:"delta"`
	Muted bool    `json:"muted"`
}

// ReportEvents applies a batch of client observations in order and
// hands back whatever commands they produced.
func (h *FeedHandler) ReportEvents(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var body struct {
		Events []feedEventBody `json:"events"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var active int
	sess.With(func(s *feed.Scheduler) {
		for _, ev := range body.Events {
			switch ev.Type {
			case "visibility":
				s.ReportVisibility(ev.Index, ev.Ratio)
			case "scroll":
				s.ReportUserScroll()
			case "keyboard":
				s.Navigate(ev.Delta)
			case "playback_ready":
				s.ReportPlaybackReady(ev.Index)
			case "decode_error":
				s.ReportDecodeError(ev.Index)
			case "mute":
				s.SetMuted(ev.Muted)
			}
		}
		active = s.ActiveIndex()
	})

	RespondOK(c, gin.H{
		"active_index": active,
		"commands":     sess.Drain(),
	})
}

func (h *FeedHandler) Commands(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	RespondOK(c, gin.H{"commands": sess.Drain()})
}

func (h *FeedHandler) CloseSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid session id", err)
		return
	}
	h.sessions.Close(id)
	c.Status(http.StatusNoContent)
}

func (h *FeedHandler) session(c *gin.Context) (*feed.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid session id", err)
		return nil, false
	}
	sess, err := h.sessions.Get(id)
	if err != nil {
		RespondError(c, http.StatusNotFound, "unknown or expired session", err)
		return nil, false
	}
	return sess, true
}
