package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/api"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/assets"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/config"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/conversation"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/redcache"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/session"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/storage"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/tutor"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/viewer"
)

func main() {
	cfgPath := os.Getenv("EXAMV2_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("EXAMV2_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: exam_papers, questions, conversations, messages
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// The shared image cache is optional; without redis every session
	// fetches its own copies.
	var imageCache *redcache.Client
	if cfg.Redis.Host != "" {
		imageCache, err = redcache.New(cfg)
		if err != nil {
			log.Printf("redis unavailable, continuing without shared image cache: %v", err)
			imageCache = nil
		} else {
			defer imageCache.Close()
		}
	}

	store := assets.NewStore(db)
	fetcher := assets.NewFetcher(imageCache)
	conversations := conversation.NewStore(db)

	backendToken := os.Getenv("EXAMV2_BACKEND_TOKEN")
	backend := tutor.NewBackendClient(cfg.Backend.URL, backendToken)
	tutorSvc := tutor.NewService(backend, conversations)

	registry := session.NewRegistry(store, fetcher, conversations, tutorSvc, cfg.Viewer, viewer.ClockScheduler{}, cfg.Backend.Provider)
	handlers := api.NewHandler(registry, conversations)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
