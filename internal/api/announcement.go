package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) getAnnouncements(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}

	announcements, err := database.GetAnnouncementsForWindow(h.db, window.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, announcements, "Announcements retrieved")
}

// postAnnouncement publishes the new announcement on the window's board topic
// so connected viewers see it without reloading.
func (h *Handler) postAnnouncement(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title" binding:"required"`
		Body  string `json:"body" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	announcement := models.Announcement{
		WindowID: window.ID,
		Title:    req.Title,
		Body:     req.Body,
	}
	if err := database.CreateAnnouncement(h.db, &announcement); err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}

	h.broker.Publish(contest.BoardTopic(window.ID), pubsub.FormatEvent("announcement", announcement))
	zap.S().Infof("announcement %d posted to window %s", announcement.ID, window.Code)
	util.Success(c, announcement, "Announcement posted")
}

func (h *Handler) deleteAnnouncement(c *gin.Context) {
	window, ok := h.window(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, "invalid announcement id")
		return
	}

	if err := database.DeleteAnnouncement(h.db, window.ID, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "announcement not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return
	}

	zap.S().Warnf("announcement %d deleted from window %s", id, window.Code)
	util.Success(c, nil, "Announcement deleted")
}
