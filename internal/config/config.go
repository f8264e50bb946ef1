package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SnapshotScope 마지막 스냅샷 보관 범위
type SnapshotScope string

const (
	// SnapshotScopeRoom 방마다 별도의 마지막 스냅샷 유지
	SnapshotScopeRoom SnapshotScope = "room"
	// SnapshotScopeGlobal 프로세스 전체에서 하나의 스냅샷 공유 (레거시 호환)
	SnapshotScopeGlobal SnapshotScope = "global"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Room      RoomConfig
	CORS      CORSConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	BodyLimit    int
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int   // 연결별 송신 큐 길이
	MaxMessageSize  int64 // 스냅샷(data URL)이 크므로 넉넉하게
	WriteTimeout    time.Duration
}

// RoomConfig 방/이벤트 루프 설정
type RoomConfig struct {
	JoinAnnounceDelay time.Duration
	SnapshotScope     SnapshotScope
	EventQueueSize    int
	ChatMaxLength     int
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// RedisConfig Redis 설정 (Addr가 비어 있으면 비활성화)
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// Enabled Redis 사용 여부
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// DatabaseConfig 데이터베이스 설정 (Host가 비어 있으면 비활성화)
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// Enabled 데이터베이스 사용 여부
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// RateLimitConfig /api 요청 제한
type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
}

// Load 환경 변수에서 설정 로드
func Load() *Config {
	// .env 파일 로드 (없어도 에러 무시)
	if err := godotenv.Load(); err != nil {
		log.Println("ℹ️ No .env file found, using environment variables")
	}

	return FromEnv()
}

// FromEnv .env 로드 없이 현재 환경 변수만으로 설정 구성
func FromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":5000"),
			ReadTimeout:  getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("IDLE_TIMEOUT", 120*time.Second),
			BodyLimit:    getInt("BODY_LIMIT", 10*1024*1024),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getInt("WS_READ_BUFFER_SIZE", 16*1024),
			WriteBufferSize: getInt("WS_WRITE_BUFFER_SIZE", 16*1024),
			SendBufferSize:  getInt("WS_SEND_BUFFER", 64),
			MaxMessageSize:  int64(getInt("WS_MAX_MESSAGE_SIZE", 8*1024*1024)),
			WriteTimeout:    getDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},
		Room: RoomConfig{
			JoinAnnounceDelay: getDuration("JOIN_ANNOUNCE_DELAY", 1000*time.Millisecond),
			SnapshotScope:     getSnapshotScope("SNAPSHOT_SCOPE", SnapshotScopeRoom),
			EventQueueSize:    getInt("EVENT_QUEUE_SIZE", 1024),
			ChatMaxLength:     getInt("CHAT_MAX_LENGTH", 2000),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", ""),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getInt("REDIS_DB", 0),
			PresenceTTL: getDuration("PRESENCE_TTL", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "postgres"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "Asia/Seoul"),
		},
		RateLimit: RateLimitConfig{
			Max:        getInt("API_RATE_LIMIT", 60),
			Expiration: getDuration("API_RATE_WINDOW", 1*time.Minute),
		},
	}
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		// 숫자만 있으면 초로 간주
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getSnapshotScope 스냅샷 범위 조회 (알 수 없는 값이면 기본값)
func getSnapshotScope(key string, defaultValue SnapshotScope) SnapshotScope {
	switch SnapshotScope(strings.ToLower(os.Getenv(key))) {
	case SnapshotScopeRoom:
		return SnapshotScopeRoom
	case SnapshotScopeGlobal:
		return SnapshotScopeGlobal
	default:
		return defaultValue
	}
}
