package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/GoRehab/internal/config"
	"github.com/Skufu/GoRehab/internal/engine"
)

var bundledKB = filepath.Join("..", "..", "data", "rehab_kb.yaml")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("KB_SOURCE", bundledKB)
	t.Setenv("LOG_LEVEL", "error")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("unexpected config error: %v", err)
	}
	return cfg
}

func TestNewAppRejectsUnknownMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.MatchMode = "random"
	if _, err := newApp(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown match mode")
	}
}

func TestNewAppRejectsMissingRulesFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := newApp(cfg, zerolog.Nop()); err == nil {
		t.Fatal("expected error for missing rules file")
	}
}

func TestAppRouterServesRecommendations(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, err := newApp(testConfig(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	router := a.router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/readyz", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"kb":"pending"`) {
		t.Fatalf("expected pending readiness before first use, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/find-program", strings.NewReader(`{"diagnosis":"joint replacement","severity":"mild","age_group":"elderly"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rehab:JointReplacementProgram") {
		t.Fatalf("unexpected response %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/readyz", nil)
	router.ServeHTTP(w, req)
	if !strings.Contains(w.Body.String(), `"kb":"ready"`) {
		t.Fatalf("expected ready after first use, got %s", w.Body.String())
	}
}

func TestFailedPreloadServesDegraded(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.KBSource = filepath.Join(t.TempDir(), "missing.yaml")
	a, err := newApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a.preload(context.Background())
	router := a.router()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/readyz", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"status":"degraded"`) {
		t.Fatalf("expected degraded readiness, got %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("POST", "/api/find-program", strings.NewReader(`{"diagnosis":"stroke","severity":"mild","age_group":"adult"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "knowledge_base_unavailable") {
		t.Fatalf("expected 503, got %d %s", w.Code, w.Body.String())
	}
}

func TestRecommendCommand(t *testing.T) {
	testConfig(t)
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"recommend", "--diagnosis", "stroke", "--severity", "severe", "--age", "adult", "--goal", "walking"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("recommend failed: %v", err)
	}
	var programs []engine.ScoredProgram
	if err := json.Unmarshal(out.Bytes(), &programs); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out.String(), err)
	}
	if len(programs) == 0 || programs[0].ID != "rehab:RoboticGaitProgram" {
		t.Fatalf("unexpected recommendations: %+v", programs)
	}
}

func TestRecommendCommandValidation(t *testing.T) {
	testConfig(t)
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"recommend", "--diagnosis", "stroke"})

	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "severity") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	testConfig(t)
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "skipped: 0") || !strings.Contains(got, "Program") {
		t.Fatalf("unexpected check output: %s", got)
	}
	if strings.Contains(got, "unmapped archetypes") {
		t.Fatalf("bundled rules reference archetypes missing from the knowledge base: %s", got)
	}
}

func TestCheckCommandMissingSource(t *testing.T) {
	t.Setenv("KB_SOURCE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LOG_LEVEL", "error")
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing knowledge base")
	}
}
