package server

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"realtime-board/internal/config"
	"realtime-board/internal/database"
	"realtime-board/internal/gateway"
	"realtime-board/internal/handler"
	"realtime-board/internal/presence"
	"realtime-board/internal/service"
)

// Deps 선택적 외부 의존성 (모두 nil 가능)
type Deps struct {
	DB       *gorm.DB
	Presence *presence.Manager
	Audit    *service.AuditService
}

// Server Fiber 서버 래퍼
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	deps          Deps
	gateway       *gateway.Gateway
	healthHandler *handler.HealthHandler
	roomHandler   *handler.RoomHandler

	startOnce sync.Once
	cancel    context.CancelFunc
	workers   sync.WaitGroup
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Realtime Board Relay",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	opts := gateway.Options{
		JoinAnnounceDelay: cfg.Room.JoinAnnounceDelay,
		GlobalSnapshot:    cfg.Room.SnapshotScope == config.SnapshotScopeGlobal,
		QueueSize:         cfg.Room.EventQueueSize,
		ChatMaxLength:     cfg.Room.ChatMaxLength,
	}

	// nil 포인터를 인터페이스에 넣지 않도록 개별 확인
	var dbCheck, redisCheck handler.HealthChecker
	var events handler.EventLister
	if deps.Presence != nil {
		opts.Presence = deps.Presence
		redisCheck = deps.Presence.Health
	}
	if deps.Audit != nil {
		opts.Recorder = deps.Audit
		events = deps.Audit
	}
	if deps.DB != nil {
		db := deps.DB
		dbCheck = func(context.Context) error { return database.Ping(db) }
	}

	gw := gateway.New(opts)

	return &Server{
		app:           app,
		cfg:           cfg,
		deps:          deps,
		gateway:       gw,
		healthHandler: handler.NewHealthHandler(dbCheck, redisCheck),
		roomHandler:   handler.NewRoomHandler(gw, events),
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: s.cfg.CORS.AllowOrigins,
		AllowHeaders: s.cfg.CORS.AllowHeaders,
		AllowMethods: "GET, POST, OPTIONS",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/stats", s.roomHandler.GetStats)

	// Rate Limiter 설정 (REST API용)
	apiLimiter := limiter.New(limiter.Config{
		Max:        s.cfg.RateLimit.Max,
		Expiration: s.cfg.RateLimit.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api", apiLimiter)
	api.Post("/rooms", s.roomHandler.CreateRoom)
	api.Get("/rooms/:roomId/participants", s.roomHandler.GetParticipants)
	api.Get("/rooms/:roomId/events", s.roomHandler.GetEvents)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// 보드 실시간 채널 (join 이벤트로 방 입장)
	s.app.Get("/ws", websocket.New(s.gateway.ServeSocket(gateway.SocketConfig{
		SendBuffer:     s.cfg.WebSocket.SendBufferSize,
		MaxMessageSize: s.cfg.WebSocket.MaxMessageSize,
		WriteTimeout:   s.cfg.WebSocket.WriteTimeout,
	}), websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// startBackground 게이트웨이 이벤트 루프와 보조 워커 시작
func (s *Server) startBackground() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel

		go s.gateway.Run(ctx)

		if s.deps.Presence != nil {
			s.workers.Add(1)
			go func() {
				defer s.workers.Done()
				s.deps.Presence.Run(ctx)
			}()
		}
		if s.deps.Audit != nil {
			s.workers.Add(1)
			go func() {
				defer s.workers.Done()
				s.deps.Audit.Run(ctx)
			}()
		}
	})
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-quit
		log.Println("🛑 Shutting down server...")
		if err := s.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	s.startBackground()

	log.Printf("🚀 Realtime Board Relay starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws", s.cfg.Server.Port)

	if err := s.app.Listen(s.cfg.Server.Port); err != nil {
		return err
	}

	// 감사 로그 flush까지 끝난 뒤 반환
	<-stopped
	return nil
}

// Serve 이미 열린 리스너로 서버 시작 (테스트용)
func (s *Server) Serve(ln net.Listener) error {
	s.startBackground()
	return s.app.Listener(ln)
}

// Shutdown 서버 종료. 소켓을 먼저 닫고 HTTP 서버, 워커 순으로 정리
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
		<-s.gateway.Done()
	}

	err := s.app.ShutdownWithTimeout(30 * time.Second)
	s.workers.Wait()
	return err
}
