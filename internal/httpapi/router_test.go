package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Skufu/GoRehab/internal/catalog"
	"github.com/Skufu/GoRehab/internal/engine"
	"github.com/Skufu/GoRehab/internal/kb"
	"github.com/Skufu/GoRehab/internal/policy"
)

type fakeHealth struct {
	err error
}

func (f fakeHealth) Ping(ctx context.Context) error {
	return f.err
}

func testRouter(t *testing.T, source kb.Source, health HealthChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rules := policy.Default()
	return NewRouter(Deps{
		Engine:  engine.New(source, rules),
		Catalog: catalog.New(source),
		Rules:   rules,
		Health:  health,
		Logger:  zerolog.Nop(),
	})
}

func bundledRouter(t *testing.T) *gin.Engine {
	t.Helper()
	s, err := kb.LoadFile(filepath.Join("..", "..", "data", "rehab_kb.yaml"), zerolog.Nop())
	if err != nil {
		t.Fatalf("load bundled knowledge base: %v", err)
	}
	p := kb.Static(s)
	return testRouter(t, p, p)
}

func failingProvider() *kb.Provider {
	return kb.NewProvider(func(ctx context.Context) (*kb.Store, error) {
		return nil, &kb.LoadError{Source: "missing.yaml", Err: errors.New("no such file")}
	})
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRouterHealthz(t *testing.T) {
	router := bundledRouter(t)
	w := do(router, "GET", "/healthz", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := bundledRouter(t)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	router.ServeHTTP(w, req)

	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("expected request id to be echoed, got %q", got)
	}
}

func TestRouterReadyz(t *testing.T) {
	tests := []struct {
		name   string
		health HealthChecker
		code   int
		want   string
	}{
		{"ready", fakeHealth{}, http.StatusOK, `"kb":"ready"`},
		{"pending", fakeHealth{err: kb.ErrPending}, http.StatusOK, `"kb":"pending"`},
		{"failed", fakeHealth{err: errors.New("boom")}, http.StatusServiceUnavailable, `"status":"degraded"`},
		{"no checker", nil, http.StatusOK, `"status":"ok"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := testRouter(t, failingProvider(), tt.health)
			w := do(router, "GET", "/readyz", "")
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Fatalf("expected %s in body, got %s", tt.want, w.Body.String())
			}
		})
	}
}

func TestReadyzWithProvider(t *testing.T) {
	p := failingProvider()
	router := testRouter(t, p, p)

	if w := do(router, "GET", "/readyz", ""); w.Code != http.StatusOK {
		t.Fatalf("expected pending provider to be ready for traffic, got %d", w.Code)
	}
	// The first real request triggers the load, which fails.
	if w := do(router, "GET", "/api/programs", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w := do(router, "GET", "/readyz", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after failed load, got %d", w.Code)
	}
}

// Ensure limitBodySize middleware allows small payloads and blocks large ones.
func TestLimitBodySize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(limitBodySize(10))
	router.POST("/echo", func(c *gin.Context) {
		_, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too large"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	t.Run("within limit", func(t *testing.T) {
		w := do(router, "POST", "/echo", "12345")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		w := do(router, "POST", "/echo", "01234567890")
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", w.Code)
		}
	})
}

type findResponse struct {
	Programs []engine.ScoredProgram `json:"programs"`
	Count    int                    `json:"count"`
	Mode     string                 `json:"mode"`
}

func TestFindPrograms(t *testing.T) {
	router := bundledRouter(t)
	w := do(router, "POST", "/api/find-program", `{
		"diagnosis": "Stroke",
		"severity": "severe",
		"age_group": "adult",
		"goals": ["walking"]
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp findResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != len(resp.Programs) || resp.Count == 0 || resp.Count > engine.MaxResults {
		t.Fatalf("unexpected count %d for %d programs", resp.Count, len(resp.Programs))
	}
	if resp.Mode != "archetype" {
		t.Fatalf("expected archetype mode, got %q", resp.Mode)
	}
	if resp.Programs[0].ID != "rehab:RoboticGaitProgram" {
		t.Fatalf("expected robotic gait first, got %s", resp.Programs[0].ID)
	}
}

func TestFindProgramsUnknownDiagnosis(t *testing.T) {
	router := bundledRouter(t)
	w := do(router, "POST", "/api/find-program", `{"diagnosis": "influenza", "severity": "mild", "age_group": "adult"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"programs":[]`) || !strings.Contains(w.Body.String(), `"count":0`) {
		t.Fatalf("expected empty result, got %s", w.Body.String())
	}
}

func TestFindProgramsValidation(t *testing.T) {
	router := bundledRouter(t)
	w := do(router, "POST", "/api/find-program", `{
		"diagnosis": "",
		"severity": "extreme",
		"age_group": "adult"
	}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for validation failure, got %d", w.Code)
	}
	body := strings.ToLower(w.Body.String())
	if !strings.Contains(body, "validation_failed") || !strings.Contains(body, "severity") {
		t.Fatalf("expected validation error response, got %s", w.Body.String())
	}
}

func TestFindProgramsInvalidPayload(t *testing.T) {
	router := bundledRouter(t)
	w := do(router, "POST", "/api/find-program", `{"diagnosis": 42`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestFindProgramsUnavailable(t *testing.T) {
	router := testRouter(t, failingProvider(), nil)
	w := do(router, "POST", "/api/find-program", `{"diagnosis": "stroke", "severity": "mild", "age_group": "adult"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "missing.yaml") {
		t.Fatalf("load error leaked to client: %s", w.Body.String())
	}
}

func TestProgramsCatalog(t *testing.T) {
	router := bundledRouter(t)

	w := do(router, "GET", "/api/programs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Programs []catalog.ProgramSummary `json:"programs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Programs) == 0 {
		t.Fatalf("unexpected programs body %s (%v)", w.Body.String(), err)
	}

	for _, p := range list.Programs {
		w := do(router, "GET", "/api/programs/"+p.ID, "")
		if w.Code != http.StatusOK {
			t.Fatalf("detail for %s: expected 200, got %d", p.ID, w.Code)
		}
	}

	if w := do(router, "GET", "/api/programs/rehab:Unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestConceptsAndDiagnoses(t *testing.T) {
	router := bundledRouter(t)

	w := do(router, "GET", "/api/concepts?kind=condition", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "rehab:Epilepsy") {
		t.Fatalf("unexpected concepts response %d: %s", w.Code, w.Body.String())
	}
	if w := do(router, "GET", "/api/concepts?kind=hospital", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown kind, got %d", w.Code)
	}

	w = do(router, "GET", "/api/diagnoses", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "spinal cord injury") {
		t.Fatalf("unexpected diagnoses response %d: %s", w.Code, w.Body.String())
	}
}

func TestCORSConfig(t *testing.T) {
	if cfg := corsConfig(nil); !cfg.AllowAllOrigins {
		t.Fatal("expected all origins when none configured")
	}
	if cfg := corsConfig([]string{"https://a.example", "*"}); !cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 0 {
		t.Fatalf("expected wildcard to allow all origins, got %+v", cfg)
	}
	cfg := corsConfig([]string{"https://a.example"})
	if cfg.AllowAllOrigins || len(cfg.AllowOrigins) != 1 {
		t.Fatalf("expected explicit origin list, got %+v", cfg)
	}
}
