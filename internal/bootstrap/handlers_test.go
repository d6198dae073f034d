package bootstrap

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/eleven-am/vision-backend/docs"
	"github.com/eleven-am/vision-backend/internal/analysis"
	"github.com/eleven-am/vision-backend/internal/health"
	"github.com/labstack/echo/v4"
)

func TestRegisterRoutes_MatchesSwaggerPaths(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	RegisterRoutes(e, HandlerParams{
		AnalysisHandler: analysis.NewHandler(nil, nil, nil, t.TempDir(), logger),
		Config:          &Config{},
		Logger:          logger,
	})
	health.NewHandler(health.Config{}, nil, nil, nil, nil).RegisterRoutes(e)

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}

	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc); err != nil {
		t.Fatalf("invalid swagger document: %v", err)
	}
	if len(doc.Paths) == 0 {
		t.Fatal("swagger document has no paths")
	}

	for path, ops := range doc.Paths {
		for method := range ops {
			key := strings.ToUpper(method) + " " + path
			if !registered[key] {
				t.Errorf("documented route %s is not registered", key)
			}
		}
	}

	for _, path := range []string{"/api/analyze-image", "/api/analyze-live", "/api/analyze-video"} {
		if _, ok := doc.Paths[path]["post"]; !ok {
			t.Errorf("POST %s is missing from the swagger document", path)
		}
	}
}
