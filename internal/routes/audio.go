package routes

import (
	"errors"
	"io"
	"log"

	"github.com/gin-gonic/gin"

	"scenetunes/internal/core"
)

type assetDescriptor struct {
	Id        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CreatedAt uint64 `json:"created_at"`
}

func AudioRoutes(r *gin.Engine, secret []byte, pipeline core.Pipeline, engine core.StreamEngine) {
	group := r.Group("/v1", AuthMiddleware(secret))

	group.POST("/audio", func(c *gin.Context) {
		owner := ownerFromContext(c)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			log.Printf(`c.Request.FormFile("file"). %+v`, err)
			c.JSON(400, gin.H{"error": "missing file field"})
			return
		}
		defer file.Close()

		// One past the cap so the validator can tell too-large from
		// exactly-at-the-limit.
		data, err := io.ReadAll(io.LimitReader(file, core.MaxUploadBytes+1))
		if err != nil {
			log.Printf("io.ReadAll(io.LimitReader(file, core.MaxUploadBytes+1)). %+v", err)
			c.JSON(500, gin.H{"error": "Opps! Server error"})
			return
		}

		candidate := core.UploadCandidate{Name: header.Filename, Data: data}

		asset, err := pipeline.Create(c.Request.Context(), candidate, owner)
		if err != nil {
			writeIngestError(c, err)
			return
		}

		c.JSON(201, assetDescriptor{
			Id:        asset.Id,
			Name:      asset.Name,
			Size:      asset.SizeBytes,
			CreatedAt: asset.CreatedAt,
		})
	})

	group.GET("/audio/:id", func(c *gin.Context) {
		owner := ownerFromContext(c)
		assetId := c.Param("id")
		rangeHeader := c.GetHeader("Range")

		desc, err := engine.Stream(c.Request.Context(), assetId, owner, rangeHeader)
		if err != nil {
			if errors.Is(err, core.ErrRangeNotSatisfiable) && desc != nil {
				c.Header("Accept-Ranges", desc.AcceptRanges)
				c.Header("Content-Range", desc.ContentRange)
				c.Status(416)
				return
			}
			writeStreamError(c, err)
			return
		}
		defer desc.Body.Close()

		headers := map[string]string{"Accept-Ranges": desc.AcceptRanges}
		if desc.ContentRange != "" {
			headers["Content-Range"] = desc.ContentRange
		}

		c.DataFromReader(desc.Status, desc.ContentLength, desc.ContentType, desc.Body, headers)
	})

	group.DELETE("/audio/:id", func(c *gin.Context) {
		owner := ownerFromContext(c)
		assetId := c.Param("id")

		freed, err := pipeline.Delete(c.Request.Context(), assetId, owner)
		if err != nil {
			writeIngestError(c, err)
			return
		}

		c.JSON(200, gin.H{"deleted": true, "freed_bytes": freed})
	})
}

// writeIngestError maps validation and ingestion error kinds onto HTTP.
// Client-correctable kinds carry their message; server-side kinds get a
// generic body, the detail stays in the logs.
func writeIngestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput), errors.Is(err, core.ErrEmptyFile):
		c.JSON(400, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrFileTooLarge):
		c.JSON(413, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrUnsupportedType):
		c.JSON(415, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrQuotaExceeded):
		c.JSON(403, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrMalwareDetected):
		c.JSON(422, gin.H{"error": err.Error()})
	case errors.Is(err, core.ErrUnauthorized):
		c.JSON(401, gin.H{"error": "unauthorized"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(404, gin.H{"error": "not found"})
	default:
		log.Printf("ingest error. %+v", err)
		c.JSON(500, gin.H{"error": "Opps! Server error"})
	}
}

func writeStreamError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		c.JSON(401, gin.H{"error": "unauthorized"})
	case errors.Is(err, core.ErrNotFound):
		c.JSON(404, gin.H{"error": "not found"})
	default:
		log.Printf("stream error. %+v", err)
		c.JSON(500, gin.H{"error": "Opps! Server error"})
	}
}
