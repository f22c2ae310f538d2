package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bookswap/bookswap/internal/logging"
)

func setupTestApp(t *testing.T, hits *int32) (*fiber.App, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	app := fiber.New()
	logger := logging.Discard()
	app.Use(Idempotency(cache, time.Minute, logger))
	app.Post("/deals/1/accept", func(c *fiber.Ctx) error {
		atomic.AddInt32(hits, 1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "accepted"})
	})
	app.Post("/deals/1/fail", func(c *fiber.Ctx) error {
		atomic.AddInt32(hits, 1)
		return fiber.NewError(fiber.StatusConflict, "deal is not pending")
	})

	cleanup := func() {
		cache.Close()
		mr.Close()
	}

	return app, cleanup
}

func TestIdempotencyPassThroughWithoutHeader(t *testing.T) {
	var hits int32
	app, cleanup := setupTestApp(t, &hits)
	defer cleanup()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/deals/1/accept", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("requests without a key must both reach the handler, got %d hits", got)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var hits int32
	app, cleanup := setupTestApp(t, &hits)
	defer cleanup()

	send := func() (int, string) {
		req := httptest.NewRequest(fiber.MethodPost, "/deals/1/accept", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "accept-1")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return resp.StatusCode, string(body)
	}

	firstStatus, firstBody := send()
	secondStatus, secondBody := send()

	if firstStatus != fiber.StatusOK || secondStatus != fiber.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", firstStatus, secondStatus)
	}
	if firstBody != secondBody {
		t.Fatalf("replayed body differs: %q vs %q", firstBody, secondBody)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("handler must run once, got %d hits", got)
	}
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	var hits int32
	app, cleanup := setupTestApp(t, &hits)
	defer cleanup()

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(fiber.MethodPost, "/deals/1/fail", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		req.Header.Set(idempotencyKeyHeader, "fail-1")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if resp.StatusCode != fiber.StatusConflict {
			t.Fatalf("expected 409, got %d", resp.StatusCode)
		}
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Fatalf("failed responses are not cached, expected 2 hits, got %d", got)
	}
}
