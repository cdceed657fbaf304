package api

import (
	"github.com/PACTF/pactf/internal/config"
	"github.com/PACTF/pactf/internal/contest"
	"github.com/PACTF/pactf/internal/pubsub"
	"github.com/PACTF/pactf/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter wires the engine's consumer contract onto a Gin engine: list
// visible problems, submit a flag, start a timer, and read the boards.
func NewRouter(
	cfg *config.Config,
	db *gorm.DB,
	engine *contest.Engine,
	limiter ratelimit.Limiter,
	broker *pubsub.Broker) *gin.Engine {

	r := gin.Default()

	r.Use(CORSMiddleware(cfg.CORS))

	h := NewHandler(cfg, db, engine, limiter, broker)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.register)
			authGroup.POST("/login", h.login)
		}

		// Public reads.
		v1.GET("/windows", h.getAllWindows)
		v1.GET("/windows/current", h.getCurrentWindow)
		v1.GET("/windows/:code/board", h.getBoard)
		v1.GET("/windows/:code/announcements", h.getAnnouncements)
		v1.GET("/board", h.getOverallBoard)

		// Websocket carries its token as a query parameter.
		v1.GET("/ws/windows/:code/board", h.handleBoardWs)

		authed := v1.Group("/")
		authed.Use(AuthMiddleware(cfg.Auth.JWT.Secret))
		{
			authed.GET("/windows/:code", h.getWindow)
			authed.POST("/windows/:code/timer", h.startTimer)
			authed.GET("/windows/:code/problems", h.getVisibleProblems)
			authed.POST("/problems/:id/submit", h.submitFlag)
			authed.GET("/submissions", h.getTeamSubmissions)

			admin := authed.Group("/admin")
			admin.Use(AdminMiddleware(db))
			{
				admin.PUT("/windows/:code", h.saveWindow)
				admin.PUT("/windows/:code/problems", h.saveProblems)
				admin.POST("/windows/:code/announcements", h.postAnnouncement)
				admin.DELETE("/windows/:code/announcements/:id", h.deleteAnnouncement)
				admin.POST("/teams/:id/ban", h.banTeam)
				admin.POST("/windows/:code/board/invalidate", h.invalidateBoard)
			}
		}
	}

	return r
}
