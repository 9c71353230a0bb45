package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchyard/pkg/logging"
)

type entry struct {
	level     string
	requestID string
	fields    []interface{}
}

type recorder struct {
	mu      sync.Mutex
	entries []entry
}

func (r *recorder) add(level string, ctx context.Context, kv []interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry{level: level, requestID: logging.GetRequestID(ctx), fields: kv})
}

func (r *recorder) InfowCtx(ctx context.Context, _ string, kv ...interface{}) {
	r.add("info", ctx, kv)
}

func (r *recorder) ErrorwCtx(ctx context.Context, _ string, kv ...interface{}) {
	r.add("error", ctx, kv)
}

func (r *recorder) Errorw(_ string, kv ...interface{}) {
	r.add("error", context.Background(), kv)
}

func newRouter(log *recorder) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware(), LoggerMiddleware(log), RecoveryMiddleware(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRequestIDPropagation(t *testing.T) {
	log := &recorder{}
	r := newRouter(log)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
	require.Len(t, log.entries, 1)
	assert.Equal(t, "info", log.entries[0].level)
	assert.Equal(t, "req-42", log.entries[0].requestID)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)
}

func TestRecoveryMiddleware(t *testing.T) {
	log := &recorder{}
	r := newRouter(log)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")

	var levels []string
	for _, e := range log.entries {
		levels = append(levels, e.level)
	}
	assert.Equal(t, []string{"error", "error"}, levels)
}
