package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/item-service/internal/model"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Created", http.StatusCreated},
		{"BadRequest", http.StatusBadRequest},
		{"NotFound", http.StatusNotFound},
		{"ServiceUnavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			rw := newResponseWriter(httptest.NewRecorder())

			// Act
			rw.WriteHeader(tt.statusCode)
			rw.WriteHeader(http.StatusTeapot)

			// Assert
			if rw.statusCode != tt.statusCode {
				t.Errorf("statusCode = %d, want %d", rw.statusCode, tt.statusCode)
			}
			if !rw.written {
				t.Error("written should be true after WriteHeader")
			}
		})
	}
}

func TestResponseWriter_WriteDefaultsToOK(t *testing.T) {
	// Arrange
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	// Act
	n, err := rw.Write([]byte("body"))

	// Assert
	if err != nil || n != 4 {
		t.Fatalf("Write() = %d, %v", n, err)
	}
	if rw.statusCode != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("statusCode = %d, recorder = %d, want 200", rw.statusCode, rec.Code)
	}
}

func TestResponseWriter_HijackNotSupported(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	if _, _, err := rw.Hijack(); err != http.ErrNotSupported {
		t.Errorf("Hijack() error = %v, want %v", err, http.ErrNotSupported)
	}
}

func TestChain(t *testing.T) {
	// Arrange
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	handler := Chain(tag("outer"), tag("inner"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	}))

	// Act
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	// Assert
	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestLogging_Levels(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "api request", path: "/api/v1/items", status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "client error", path: "/api/v1/items/9", status: http.StatusNotFound, wantLevel: zapcore.InfoLevel},
		{name: "server error", path: "/api/v1/items", status: http.StatusInternalServerError, wantLevel: zapcore.WarnLevel},
		{name: "health probe", path: "/health", status: http.StatusOK, wantLevel: zapcore.DebugLevel},
		{name: "readiness probe", path: "/ready", status: http.StatusServiceUnavailable, wantLevel: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			core, logs := observer.New(zapcore.DebugLevel)
			handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			// Act
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			// Assert
			entries := logs.All()
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", entries[0].Level, tt.wantLevel)
			}
			if got := entries[0].ContextMap()["status"]; got != int64(tt.status) {
				t.Errorf("status field = %v, want %d", got, tt.status)
			}
		})
	}
}

func TestRecovery_RecoversPanic(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := Recovery(zap.New(core))(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()

	// Act
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil))

	// Assert
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
	var body model.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Code != http.StatusInternalServerError || body.Message != "internal server error" {
		t.Errorf("body = %+v", body)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Error("panic should be logged")
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()

	Recovery(zap.NewNop())(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			var seen string
			handler := RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromContext(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()

			// Act
			handler.ServeHTTP(rr, req)

			// Assert
			if seen == "" {
				t.Fatal("request ID missing from context")
			}
			if tt.incoming != "" && seen != tt.incoming {
				t.Errorf("context ID = %s, want %s", seen, tt.incoming)
			}
			if rr.Header().Get(RequestIDHeader) != seen {
				t.Errorf("response header = %s, want %s", rr.Header().Get(RequestIDHeader), seen)
			}
		})
	}
}

func TestRequestID_GeneratesUniqueIDs(t *testing.T) {
	handler := RequestID()(okHandler())
	ids := make(map[string]bool)

	for i := 0; i < 100; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		ids[rr.Header().Get(RequestIDHeader)] = true
	}

	if len(ids) != 100 {
		t.Errorf("generated %d unique IDs, want 100", len(ids))
	}
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Errorf("RequestIDFromContext() = %q, want empty", got)
	}
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	// Arrange
	router := mux.NewRouter()
	router.Use(mux.MiddlewareFunc(Metrics()))
	router.HandleFunc("/api/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/items/{id}", "404")
	before := testutil.ToFloat64(counter)

	// Act
	for _, id := range []string{"1", "2", "3"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/items/"+id, nil))
	}

	// Assert
	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("requests counted = %v, want 3", got)
	}
	if got := testutil.ToFloat64(httpRequestsInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}
}

func TestRouteTemplate_Unmatched(t *testing.T) {
	if got := routeTemplate(httptest.NewRequest(http.MethodGet, "/nope", nil)); got != "unmatched" {
		t.Errorf("routeTemplate() = %s, want unmatched", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name            string
		allowed         []string
		origin          string
		method          string
		wantOrigin      string
		wantCredentials bool
		wantStatus      int
	}{
		{
			name:            "listed origin",
			allowed:         []string{"http://localhost:3000"},
			origin:          "http://localhost:3000",
			method:          http.MethodGet,
			wantOrigin:      "http://localhost:3000",
			wantCredentials: true,
			wantStatus:      http.StatusOK,
		},
		{
			name:       "wildcard",
			allowed:    []string{"*"},
			origin:     "http://any.example",
			method:     http.MethodGet,
			wantOrigin: "http://any.example",
			wantStatus: http.StatusOK,
		},
		{
			name:       "disallowed origin",
			allowed:    []string{"http://localhost:3000"},
			origin:     "http://evil.example",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight",
			allowed:    []string{"*"},
			origin:     "http://any.example",
			method:     http.MethodOptions,
			wantOrigin: "http://any.example",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			req := httptest.NewRequest(tt.method, "/api/v1/items", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()

			// Act
			CORS(tt.allowed)(okHandler()).ServeHTTP(rr, req)

			// Assert
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rr.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCredentials {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCredentials)
			}
			if rr.Header().Get("Access-Control-Allow-Methods") == "" {
				t.Error("Allow-Methods should be set")
			}
		})
	}
}

func TestMiddlewareChainIntegration(t *testing.T) {
	// Arrange
	logger := zap.NewNop()
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestIDFromContext(r.Context()) == "" {
			t.Error("request ID should be set by middleware")
		}
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Chain(Recovery(logger), RequestID(), Logging(logger), Metrics(), CORS([]string{"*"}))(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()

	// Act
	wrapped.ServeHTTP(rr, req)

	// Assert
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Error("response should carry the request ID header")
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("response should carry CORS headers")
	}
}
