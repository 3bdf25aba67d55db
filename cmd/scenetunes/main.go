package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"scenetunes/external/clamd"
	"scenetunes/internal/core"
	"scenetunes/internal/database"
	"scenetunes/internal/io"
	"scenetunes/internal/probe"
	"scenetunes/internal/routes"
	"scenetunes/internal/scan"
	"scenetunes/internal/utils"
)

const (
	JWT_SECRET          = "JWT_SECRET"
	DEFAULT_QUOTA_BYTES = "DEFAULT_QUOTA_BYTES"
	CLAMD_ADDR          = "CLAMD_ADDR"
	SKIP_MALWARE_SCAN   = "SKIP_MALWARE_SCAN"
)

const defaultQuotaBytes = 100 << 20

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	homeDir, err := utils.GetScenetunesHomeDirectory()
	if err != nil {
		log.Panicf(`utils.GetScenetunesHomeDirectory(). %+v`, err)
	}

	log.Println("Current home dir: ", homeDir)

	sqlite, err := database.DatabaseSetup(ctx, homeDir, database.EmbedMigrations)
	if err != nil {
		log.Panicf(`database.DatabaseSetup(ctx, homeDir, database.EmbedMigrations). %+v`, err)
	}
	defer sqlite.Db.Close()

	fileHandler, err := io.MakeFileSystemHandler()
	if err != nil {
		log.Panicf(`io.MakeFileSystemHandler(). %+v`, err)
	}

	secret := os.Getenv(JWT_SECRET)
	if secret == "" {
		log.Panicf("\n JWT secret needs to be set\n")
	}

	quotaBytes := int64(defaultQuotaBytes)
	if quotaStr := os.Getenv(DEFAULT_QUOTA_BYTES); quotaStr != "" {
		quotaBytes, err = strconv.ParseInt(quotaStr, 10, 64)
		if err != nil {
			log.Panicf(`Could not convert default quota %+v`, err)
		}
	}

	validator := core.Validator{
		Prober:   probe.NewFFProbe(),
		SkipScan: os.Getenv(SKIP_MALWARE_SCAN) == "true",
	}

	if !validator.SkipScan {
		clamdAddr := os.Getenv(CLAMD_ADDR)
		if clamdAddr == "" {
			clamdAddr = "127.0.0.1:3310"
		}
		client := clamd.NewClient(clamdAddr)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := client.Ping(pingCtx); err != nil {
			log.Printf("clamd not reachable at %v, uploads will be rejected until it is. %+v", clamdAddr, err)
		}
		cancel()

		validator.Scanner = scan.NewClamdScanner(client)
	}

	pipeline := core.Pipeline{
		Validator:  validator,
		Db:         sqlite,
		Files:      fileHandler,
		QuotaBytes: quotaBytes,
	}
	engine := core.StreamEngine{
		Db:    sqlite,
		Files: fileHandler,
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "*"},
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges", "*"},
		AllowCredentials: true,
	}))

	routes.AudioRoutes(r, []byte(secret), pipeline, engine)
	routes.QuotaRoutes(r, []byte(secret), sqlite, quotaBytes)
	routes.HealthRoutes(r, sqlite)

	log.Println("scenetunes started in port 8070")
	r.Run("0.0.0.0:8070")
}
