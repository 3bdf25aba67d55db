package routes

import (
	"log"

	"github.com/gin-gonic/gin"

	"scenetunes/internal/database"
)

func QuotaRoutes(r *gin.Engine, secret []byte, db database.Database, defaultMaxBytes int64) {
	group := r.Group("/v1", AuthMiddleware(secret))

	group.GET("/quota", func(c *gin.Context) {
		owner := ownerFromContext(c)

		quota, err := db.EnsureQuota(owner, defaultMaxBytes)
		if err != nil {
			log.Printf("db.EnsureQuota(owner, defaultMaxBytes). %+v", err)
			c.JSON(500, gin.H{"error": "Opps! Server error"})
			return
		}

		c.JSON(200, gin.H{
			"used_bytes":      quota.UsedBytes,
			"max_bytes":       quota.MaxBytes,
			"available_bytes": quota.MaxBytes - quota.UsedBytes,
		})
	})
}

func HealthRoutes(r *gin.Engine, db database.Database) {
	r.GET("/v1/health", func(c *gin.Context) {
		err := db.Ping(c.Request.Context())
		if err != nil {
			log.Printf("db.Ping(c.Request.Context()). %+v", err)
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
}
