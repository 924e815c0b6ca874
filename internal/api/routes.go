package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// maxUploadMemory bounds the multipart form held in memory.
const maxUploadMemory = 32 << 20

func SetupRoutes(router *gin.Engine, handler *Handler, origins []string) {
	corsConfig := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	router.Use(cors.New(corsConfig))
	router.MaxMultipartMemory = maxUploadMemory

	api := router.Group("/api")
	{
		api.GET("/health", handler.Health)
		api.GET("/cities", handler.Cities)
		api.POST("/analysis", handler.Analyze)
		api.POST("/analysis/upload", handler.Upload)
		api.POST("/analysis/stored", handler.AnalyzeStored)
	}
}
