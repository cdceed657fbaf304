package api

import (
	"errors"
	"net/http"

	"github.com/PACTF/pactf/internal/auth"
	"github.com/PACTF/pactf/internal/database"
	"github.com/PACTF/pactf/internal/database/models"
	"github.com/PACTF/pactf/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func (h *Handler) register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
		Email    string `json:"email" binding:"required"`

		TeamName        string `json:"team_name" binding:"required"`
		TeamCountry     string `json:"team_country"`
		TeamBackground  string `json:"team_background"`
		TeamAffiliation string `json:"team_affiliation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if _, err := database.GetCompetitorByUsername(h.db, req.Username); !errors.Is(err, gorm.ErrRecordNotFound) {
		if err == nil {
			util.Error(c, http.StatusConflict, "username already exists")
		} else {
			util.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	var competitor models.Competitor

	// Team and competitor are created together or not at all. An existing
	// team name means joining that team; membership is immutable afterwards.
	err = h.db.Transaction(func(tx *gorm.DB) error {
		team, err := database.GetTeamByName(tx, req.TeamName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			team = &models.Team{
				Name:        req.TeamName,
				Country:     req.TeamCountry,
				Background:  req.TeamBackground,
				Affiliation: req.TeamAffiliation,
			}
			if err := database.CreateTeam(tx, team); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		competitor = models.Competitor{
			Username:     req.Username,
			PasswordHash: hashedPassword,
			Email:        req.Email,
			TeamID:       team.ID,
		}
		return database.CreateCompetitor(tx, &competitor)
	})
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to register")
		return
	}

	zap.S().Infof("new competitor registered: %s (team %d)", competitor.Username, competitor.TeamID)
	util.Success(c, gin.H{"id": competitor.ID, "username": competitor.Username, "team_id": competitor.TeamID},
		"Registered successfully")
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	competitor, err := database.GetCompetitorByUsername(h.db, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusUnauthorized, "invalid username or password")
		} else {
			util.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	if !auth.CheckPasswordHash(req.Password, competitor.PasswordHash) {
		util.Error(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, err := auth.GenerateJWT(competitor.ID, h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to generate JWT")
		return
	}
	util.Success(c, gin.H{"token": token}, "Login successful")
}
