package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(sessionController *SessionController, roomController *RoomController, staticPath string) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowHeaders = []string{
		"Content-Type",
		"Origin",
		"Accept",
		"Accept-Language",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.GET("/:code", roomController.GetRoom)
		rooms.GET("/:code/participants", roomController.ListParticipants)
	}

	if sessionController != nil {
		router.GET("/ws", sessionController.Stream)
	}

	if staticPath != "" {
		router.Static("/static", staticPath)
		router.StaticFile("/", staticPath+"/index.html")
		// join links are client-side routes, serve the app shell
		router.GET("/join/:code", func(ctx *gin.Context) {
			ctx.File(staticPath + "/index.html")
		})
	}

	return router
}
