package main

import (
	"fmt"
	"log"

	"realtime-board/internal/config"
	"realtime-board/internal/database"
	"realtime-board/internal/model"
)

func main() {
	cfg := config.Load()
	if !cfg.Database.Enabled() {
		log.Fatal("DB_HOST is not set; the audit log is disabled")
	}

	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Check if audit table exists
	exists := db.Migrator().HasTable(&model.RoomEvent{})
	fmt.Printf("📊 room_events table exists: %v\n", exists)
	fmt.Println()
	if !exists {
		return
	}

	// Event statistics by type
	type TypeStats struct {
		Type  string
		Count int64
	}
	var stats []TypeStats
	if err := db.Model(&model.RoomEvent{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Order("type").
		Scan(&stats).Error; err != nil {
		log.Fatal("Failed to get statistics:", err)
	}

	fmt.Println("📈 Event Statistics:")
	for _, s := range stats {
		fmt.Printf("  - %-8s %d\n", s.Type, s.Count)
	}
	fmt.Println()

	// Busiest rooms
	type RoomStats struct {
		RoomID string
		Count  int64
	}
	var rooms []RoomStats
	if err := db.Model(&model.RoomEvent{}).
		Select("room_id, COUNT(*) as count").
		Group("room_id").
		Order("count DESC").
		Limit(10).
		Scan(&rooms).Error; err != nil {
		log.Fatal("Failed to get rooms:", err)
	}

	fmt.Println("🏠 Busiest Rooms:")
	for _, r := range rooms {
		fmt.Printf("  - %s: %d events\n", r.RoomID, r.Count)
	}
	fmt.Println()

	// Recent events
	var recent []model.RoomEvent
	if err := db.Order("created_at DESC").Limit(10).Find(&recent).Error; err != nil {
		log.Fatal("Failed to get recent events:", err)
	}

	fmt.Println("🕒 Recent Events:")
	for _, e := range recent {
		fmt.Printf("  - %s [%s] %s (%s) in %s, %d bytes\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Type, e.Name, e.ParticipantID, e.RoomID, e.PayloadSize)
	}
}
