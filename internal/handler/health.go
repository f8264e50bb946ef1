package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthChecker 외부 의존성 연결 확인 함수 (nil이면 미설정)
type HealthChecker func(ctx context.Context) error

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	database HealthChecker
	redis    HealthChecker
}

// NewHealthHandler HealthHandler 생성
func NewHealthHandler(database, redis HealthChecker) *HealthHandler {
	return &HealthHandler{database: database, redis: redis}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// Check 전체 상태 확인 (DB + Redis)
// 릴레이 자체는 둘 없이도 동작하므로 실패해도 degraded로만 표시
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	for name, check := range map[string]HealthChecker{"database": h.database, "redis": h.redis} {
		result := runCheck(ctx, check)
		if result.Status == "degraded" {
			response.Status = "degraded"
		}
		response.Checks[name] = result
	}

	return c.JSON(response)
}

func runCheck(ctx context.Context, check HealthChecker) ComponentCheck {
	if check == nil {
		return ComponentCheck{Status: "not_configured"}
	}

	start := time.Now()
	if err := check(ctx); err != nil {
		return ComponentCheck{
			Status: "degraded",
			Error:  err.Error(),
		}
	}
	return ComponentCheck{
		Status:  "healthy",
		Latency: time.Since(start).String(),
	}
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}
