package server

import (
	"net/http"
	"video-gate/handler"
	"video-gate/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDependencies struct {
	Videos     *handler.VideoHandler
	AuthSecret string
	Logger     zerolog.Logger
}

func NewRouter(deps RouterDependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(deps.Logger), middleware.Metrics())
	addHealth(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Auth(deps.AuthSecret)
	publisher := middleware.RequirePublisher()

	videos := r.Group("/videos")
	videos.POST("/upload", auth, publisher, deps.Videos.Upload)
	videos.POST("/access/:videoId", auth, deps.Videos.Access)
	videos.GET("/stream/:videoId/:file", deps.Videos.Stream)
	videos.GET("/status/:videoId", auth, deps.Videos.Status)
	videos.POST("/retry/:videoId", auth, publisher, deps.Videos.Retry)

	r.POST("/catalog/reindex/:courseId", auth, publisher, deps.Videos.Reindex)
	return r
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
