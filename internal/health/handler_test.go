package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/eleven-am/transcribe-relay/internal/session"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func doReadiness(t *testing.T, h *Handler) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Readiness(c); err != nil {
		t.Fatalf("readiness: %v", err)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler(nil, nil, session.NewRegistry(), "test")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Liveness(c); err != nil {
		t.Fatalf("liveness: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness_AllHealthy(t *testing.T) {
	_, client := setupTestRedis(t)
	registry := session.NewRegistry()
	registry.Create()
	h := NewHandler(setupTestDB(t), client, registry, "test")

	rec, resp := doReadiness(t, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.Stats.ActiveSessions != 1 {
		t.Errorf("expected 1 active session, got %d", resp.Stats.ActiveSessions)
	}
	if resp.Components["redis"].Status != StatusHealthy {
		t.Errorf("expected healthy redis, got %+v", resp.Components["redis"])
	}
	if resp.Components["database"].Status != StatusHealthy {
		t.Errorf("expected healthy database, got %+v", resp.Components["database"])
	}
}

func TestReadiness_DegradedWithoutDatabase(t *testing.T) {
	_, client := setupTestRedis(t)
	h := NewHandler(nil, client, session.NewRegistry(), "test")

	rec, resp := doReadiness(t, h)
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded should still answer 200, got %d", rec.Code)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", resp.Status)
	}
}

func TestReadiness_UnhealthyWhenRedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()
	h := NewHandler(nil, client, session.NewRegistry(), "test")

	rec, resp := doReadiness(t, h)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if resp.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
}
