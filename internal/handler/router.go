package handler

import (
	"net/http"

	"github.com/CageChen/astrohub/internal/collection"
	"github.com/CageChen/astrohub/internal/config"
	mfs "github.com/CageChen/astrohub/internal/fs"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every API route onto a fresh gin engine. The returned
// WSHandler should receive watcher events.
func NewRouter(cfg *config.Config, fsys mfs.FileSystem, coll *collection.Synced) (*gin.Engine, *WSHandler) {
	collHandler := NewCollectionHandler(cfg, coll)
	fileHandler := NewFileHandler(fsys, coll)
	reportHandler := NewReportHandler(coll, cfg.SortFields)
	wsHandler := NewWSHandler(coll)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	api := r.Group("/api")
	{
		api.GET("/files", collHandler.GetFiles)
		api.GET("/files/:index", fileHandler.GetFile)
		api.GET("/raw/:index", fileHandler.GetRaw)
		api.POST("/sort", collHandler.Sort)
		api.GET("/filter", collHandler.Filter)
		api.GET("/headers", collHandler.GetHeaders)
		api.GET("/data", collHandler.GetData)
		api.POST("/reload", collHandler.Reload)
		api.GET("/ws", wsHandler.HandleWS)
	}
	r.GET("/", reportHandler.GetReport)

	return r, wsHandler
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
