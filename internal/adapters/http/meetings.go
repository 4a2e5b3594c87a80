package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/svarvel/meethub/internal/store"
)

// MeetingsController exposes the meeting metadata CRUD. This is glue
// around the store; the signaling core never goes through it.
type MeetingsController struct {
	Store store.MeetingStore
}

type createMeetingRequest struct {
	Name string `json:"name" binding:"required"`
}

func (ctl *MeetingsController) Create(c *gin.Context) {
	var req createMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "meeting name is required"})
		return
	}

	m, err := ctl.Store.Create(c.Request.Context(), req.Name)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("create meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetingId": m.Code, "name": m.Name})
}

func (ctl *MeetingsController) List(c *gin.Context) {
	meetings, err := ctl.Store.List(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("list meetings")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch meetings"})
		return
	}
	c.JSON(http.StatusOK, meetings)
}

func (ctl *MeetingsController) Get(c *gin.Context) {
	m, err := ctl.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrMeetingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found or has ended"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("get meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch meeting"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (ctl *MeetingsController) End(c *gin.Context) {
	err := ctl.Store.End(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrMeetingNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("end meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ctl *MeetingsController) Check(c *gin.Context) {
	ok, err := ctl.Store.Exists(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("check meeting")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check meeting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": ok})
}
