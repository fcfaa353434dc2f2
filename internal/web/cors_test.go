package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func TestSanitizeOriginsNormalizesAndDeduplicates(t *testing.T) {
	t.Parallel()

	sanitized, sanitizeErr := sanitizeOrigins(zaptest.NewLogger(t), []string{
		"https://pizzart.example",
		"HTTPS://pizzart.example",
		"  https://studio.example  ",
		"",
	})
	if sanitizeErr != nil {
		t.Fatalf("sanitize: %v", sanitizeErr)
	}
	if len(sanitized) != 2 {
		t.Fatalf("expected 2 origins, got %v", sanitized)
	}
}

func TestSanitizeOriginsRejectsWildcard(t *testing.T) {
	t.Parallel()

	_, sanitizeErr := sanitizeOrigins(zaptest.NewLogger(t), []string{"*"})
	if !errors.Is(sanitizeErr, errWildcardOrigin) {
		t.Fatalf("expected wildcard rejection, got %v", sanitizeErr)
	}
}

func TestSanitizeOriginsRejectsPathsAndQueries(t *testing.T) {
	t.Parallel()

	for _, origin := range []string{
		"https://pizzart.example/app",
		"https://pizzart.example?debug=1",
		"ftp://pizzart.example",
	} {
		if _, sanitizeErr := sanitizeOrigins(zaptest.NewLogger(t), []string{origin}); sanitizeErr == nil {
			t.Fatalf("expected rejection for %q", origin)
		}
	}
}

func TestConfigureCORSHandlesPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	corsHandler, corsErr := ConfigureCORS(zaptest.NewLogger(t), []string{"https://pizzart.example"})
	if corsErr != nil {
		t.Fatalf("configure cors: %v", corsErr)
	}

	router := gin.New()
	router.Use(corsHandler)
	router.POST("/api/upload", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	request.Header.Set("Origin", "https://pizzart.example")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", recorder.Code)
	}
	if allow := recorder.Header().Get("Access-Control-Allow-Origin"); allow != "https://pizzart.example" {
		t.Fatalf("unexpected allow origin %q", allow)
	}
}
