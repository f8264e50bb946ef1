package main

import (
	"log"
	"os"

	"realtime-board/internal/config"
	"realtime-board/internal/database"
	"realtime-board/internal/presence"
	"realtime-board/internal/server"
	"realtime-board/internal/service"
)

func main() {
	// 설정 로드
	cfg := config.Load()

	var deps server.Deps

	// 감사 로그용 데이터베이스 (선택)
	if cfg.Database.Enabled() {
		db, err := database.ConnectDB(cfg.Database)
		if err != nil {
			log.Fatalf("❌ Database connection failed: %v", err)
		}
		defer database.Close(db)

		if err := database.Ping(db); err != nil {
			log.Fatalf("❌ Database ping failed: %v", err)
		}

		deps.DB = db
		deps.Audit = service.NewAuditService(service.NewGormEventStore(db), cfg.Room.EventQueueSize)
	} else {
		log.Println("ℹ️ Database not configured (audit log disabled)")
	}

	// Presence 미러 (선택)
	if cfg.Redis.Enabled() {
		hostname, _ := os.Hostname()
		manager, err := presence.NewManager(cfg.Redis, hostname)
		if err != nil {
			log.Printf("⚠️ Redis presence mirror disabled: %v", err)
		} else {
			defer manager.Close()
			deps.Presence = manager
		}
	} else {
		log.Println("ℹ️ Redis not configured (presence mirror disabled)")
	}

	// 서버 생성 및 설정
	srv := server.New(cfg, deps)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	// 서버 시작
	if err := srv.Start(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
