package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SantoDelgado/krizo-backend/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *atomic.Int64, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))

	var hits atomic.Int64
	app.Post("/deposits", func(c *fiber.Ctx) error {
		n := hits.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"hit": n})
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, &hits, cleanup
}

func post(t *testing.T, app *fiber.App, key string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/deposits", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return resp.StatusCode, body
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	status, first := post(t, app, "key-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
	}

	status, second := post(t, app, "key-1")
	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
	}
	if first["hit"] != second["hit"] {
		t.Fatalf("replay returned a fresh response: %v vs %v", first, second)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("handler ran %d times, want 1", got)
	}
}

func TestIdempotencyDistinctKeysRunSeparately(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "key-1")
	post(t, app, "key-2")

	if got := hits.Load(); got != 2 {
		t.Fatalf("handler ran %d times, want 2", got)
	}
}

func TestIdempotencyMissingHeaderPassesThrough(t *testing.T) {
	app, hits, cleanup := setupTestApp(t)
	defer cleanup()

	post(t, app, "")
	post(t, app, "")

	if got := hits.Load(); got != 2 {
		t.Fatalf("handler ran %d times, want 2", got)
	}
}

func TestIdempotencyInProgressConflict(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	// A concurrent request holds the reservation.
	mr.Set(idempotencyPrefix+"key-1", inProgressMarker)

	app := fiber.New()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/deposits", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	status, _ := post(t, app, "key-1")
	if status != fiber.StatusConflict {
		t.Fatalf("expected %d got %d", fiber.StatusConflict, status)
	}
}
