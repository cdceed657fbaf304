package api

import (
	"errors"
	"net/http"

	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/PACTF/pactf/internal/ratelimit"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler holds all dependencies for the API handlers.
type Handler struct {
	cfg     *config.Config
	db      *gorm.DB
	engine  *contest.Engine
	limiter ratelimit.Limiter
	broker  *pubsub.Broker
}

func NewHandler(cfg *config.Config, db *gorm.DB, engine *contest.Engine, limiter ratelimit.Limiter, broker *pubsub.Broker) *Handler {
	return &Handler{
		cfg:     cfg,
		db:      db,
		engine:  engine,
		limiter: limiter,
		broker:  broker,
	}
}

// competitor resolves the authenticated competitor set by AuthMiddleware.
func (h *Handler) competitor(c *gin.Context) (*models.Competitor, bool) {
	id := c.GetUint("competitorID")
	competitor, err := database.GetCompetitorByID(h.db, id)
	if err != nil {
		util.Error(c, http.StatusUnauthorized, "competitor not found")
		return nil, false
	}
	return competitor, true
}

// window resolves the :code path parameter.
func (h *Handler) window(c *gin.Context) (*models.Window, bool) {
	window, err := database.GetWindowByCode(h.db, c.Param("code"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, "window not found")
		} else {
			util.Error(c, http.StatusInternalServerError, err)
		}
		return nil, false
	}
	return window, true
}
