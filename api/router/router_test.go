package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-blog/api/router"
	"ai-blog/config"
	"ai-blog/services"
)

type fakeRunner struct {
	mu      sync.Mutex
	running bool
	counts  []int
	last    *services.RunReport
	err     error
	// untilCancel 이면 ctx 가 취소될 때까지 실행을 붙잡는다.
	untilCancel bool
	ctxErr      error
}

func (f *fakeRunner) RunOnce(ctx context.Context, count int) (services.RunReport, error) {
	if f.untilCancel {
		<-ctx.Done()
	}
	f.mu.Lock()
	f.ctxErr = ctx.Err()
	defer f.mu.Unlock()
	f.counts = append(f.counts, count)
	report := services.RunReport{ID: "run-1", Requested: count, Succeeded: count}
	if f.err == nil {
		f.last = &report
	}
	return report, f.err
}

func (f *fakeRunner) LastRun() (services.RunReport, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return services.RunReport{}, false
	}
	return *f.last, true
}

func (f *fakeRunner) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeRunner) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.counts...)
}

func newEngine(runner *fakeRunner, token string) http.Handler {
	gin.SetMode(gin.TestMode)
	cfg := config.Default().Server
	cfg.TriggerToken = token
	return router.New(context.Background(), runner, cfg, &sync.WaitGroup{})
}

func do(h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newEngine(&fakeRunner{}, ""), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["running"])
}

func TestTriggerRunWait(t *testing.T) {
	runner := &fakeRunner{}
	h := newEngine(runner, "")

	rec := do(h, http.MethodPost, "/api/v1/runs?count=2&wait=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var report services.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Succeeded)

	rec = do(h, http.MethodGet, "/api/v1/runs/last", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"run-1"`)
}

func TestTriggerRunBackground(t *testing.T) {
	runner := &fakeRunner{}
	rec := do(newEngine(runner, ""), http.MethodPost, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Eventually(t, func() bool { return len(runner.calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, runner.calls())
}

func TestBackgroundRunTrackedUntilShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := &fakeRunner{untilCancel: true}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var bg sync.WaitGroup
	h := router.New(ctx, runner, config.Default().Server, &bg)

	rec := do(h, http.MethodPost, "/api/v1/runs?count=1", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	done := make(chan struct{})
	go func() {
		bg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned while the run was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the server context was cancelled")
	}
	assert.Equal(t, []int{1}, runner.calls())

	runner.mu.Lock()
	defer runner.mu.Unlock()
	assert.ErrorIs(t, runner.ctxErr, context.Canceled)
}

func TestTriggerRunConflictAndValidation(t *testing.T) {
	runner := &fakeRunner{running: true}
	h := newEngine(runner, "")

	assert.Equal(t, http.StatusConflict, do(h, http.MethodPost, "/api/v1/runs?count=1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/runs?count=0", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/runs?count=99", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/v1/runs?count=abc", nil).Code)
	assert.Empty(t, runner.calls())
}

func TestTriggerRunFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("boom")}
	rec := do(newEngine(runner, ""), http.MethodPost, "/api/v1/runs?wait=1", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestLastRunNotFound(t *testing.T) {
	rec := do(newEngine(&fakeRunner{}, ""), http.MethodGet, "/api/v1/runs/last", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerAuth(t *testing.T) {
	runner := &fakeRunner{}
	h := newEngine(runner, "s3cret")

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic s3cret", want: http.StatusUnauthorized},
		{name: "valid token", header: "bearer s3cret", want: http.StatusOK},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/api/v1/runs?wait=true", map[string]string{"Authorization": tc.header})
			assert.Equal(t, tc.want, rec.Code)
		})
	}
	// GET 은 인증이 필요 없다
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/v1/runs/last", nil).Code)
}

func TestWithCORS(t *testing.T) {
	h := router.WithCORS(newEngine(&fakeRunner{}, ""), []string{"https://blog.test"})

	rec := do(h, http.MethodGet, "/health", map[string]string{"Origin": "https://blog.test"})
	assert.Equal(t, "https://blog.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(h, http.MethodGet, "/health", map[string]string{"Origin": "https://evil.test"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
