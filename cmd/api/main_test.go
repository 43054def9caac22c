package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	appconfig "github.com/wolfman30/missedcall-flow/internal/config"
	"github.com/wolfman30/missedcall-flow/pkg/logging"
)

func TestSetupMetricsExposesConversationMetrics(t *testing.T) {
	handler, m := setupMetrics(prometheus.NewRegistry())
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveTrigger("missed_call", "intro_sent")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "missedcall_conversation_triggers_total") {
		t.Fatalf("expected trigger counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func baseConfig() *appconfig.Config {
	return &appconfig.Config{
		SessionBackend:        "memory",
		CategoryStrict:        true,
		IntroTextPolicy:       "advance",
		InfobipBaseURL:        "http://127.0.0.1:1",
		InfobipAPIKey:         "key",
		InfobipWhatsAppNumber: "385910000000",
		TemplateLanguage:      "hr",
		EmailProvider:         "stub",
	}
}

func TestBuildAppInMemory(t *testing.T) {
	handler, cleanup, err := buildApp(context.Background(), baseConfig(), prometheus.NewRegistry(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	defer cleanup()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/requests/abc", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected admin 401 without secret, got %d", rr.Code)
	}
}

func TestBuildAppUsesRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.SessionBackend = "redis"
	cfg.RedisAddr = mr.Addr()

	_, cleanup, err := buildApp(context.Background(), cfg, prometheus.NewRegistry(), logging.New("error"))
	if err != nil {
		t.Fatalf("build app: %v", err)
	}
	cleanup()
}

func TestBuildAppRejectsBadConfig(t *testing.T) {
	cases := map[string]func(*appconfig.Config){
		"postgres without database": func(c *appconfig.Config) { c.SessionBackend = "postgres" },
		"unknown intro policy":      func(c *appconfig.Config) { c.IntroTextPolicy = "sometimes" },
		"missing sender":            func(c *appconfig.Config) { c.InfobipWhatsAppNumber = "" },
		"bad fallback":              func(c *appconfig.Config) { c.CategoryStrict = false; c.CategoryFallback = "nope" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			mutate(cfg)
			if _, _, err := buildApp(context.Background(), cfg, prometheus.NewRegistry(), logging.New("error")); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
