package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/watchroom/watchroom-backend/config"
	"github.com/watchroom/watchroom-backend/handlers"
	"github.com/watchroom/watchroom-backend/logger"
	"github.com/watchroom/watchroom-backend/middleware"
)

// Dependencies struct holds all dependencies required for setting up routes.
type Dependencies struct {
	Config        *config.Config
	VoteHandler   *handlers.VoteHandler
	HealthHandler *handlers.HealthHandler
	// BallotLimiter guards ballot submission. Nil disables it.
	BallotLimiter gin.HandlerFunc
}

// SetupRouter configures and returns the main Gin engine with all routes defined.
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.Default()

	if err := r.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		logger.GetLogger().Warnw("Invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}

	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(&deps.Config.Server))

	r.GET("/health", deps.HealthHandler.DetailedHealth)
	r.GET("/health/liveness", deps.HealthHandler.LivenessCheck)
	r.GET("/health/readiness", deps.HealthHandler.ReadinessCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		voteRoutes := v1.Group("/votes")
		{
			voteRoutes.POST("", deps.VoteHandler.CreateVoteHandler)
			voteRoutes.GET("", deps.VoteHandler.ListVotesHandler)
			voteRoutes.GET("/:voteId", deps.VoteHandler.GetVoteHandler)
			voteRoutes.PATCH("/:voteId/status", deps.VoteHandler.UpdateVoteStatusHandler)
			voteRoutes.DELETE("/:voteId", deps.VoteHandler.DeleteVoteHandler)

			ballotHandlers := []gin.HandlerFunc{deps.VoteHandler.SubmitBallotHandler}
			if deps.BallotLimiter != nil {
				ballotHandlers = append([]gin.HandlerFunc{deps.BallotLimiter}, ballotHandlers...)
			}
			voteRoutes.POST("/:voteId/ballots", ballotHandlers...)
		}

		v1.GET("/rooms/:roomId/votes", deps.VoteHandler.ListVotesHandler)
	}

	return r
}
