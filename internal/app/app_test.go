package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Vetflow/internal/config"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

func testDeps(cfg *config.Config) Deps {
	return Deps{
		Config: cfg,
		Logger: telemetry.NewLogger("error", "text"),
	}
}

func TestNewDischarge_WithoutAI(t *testing.T) {
	d, err := NewDischarge(testDeps(config.Default()))
	require.NoError(t, err)
	assert.NotNil(t, d.Orchestrator)
	assert.NotNil(t, d.Cases)
}

func TestNewDischarge_WithAI(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Token = "sk-test"
	cfg.AI.BaseURL = "http://127.0.0.1:1/v1"

	d, err := NewDischarge(testDeps(cfg))
	require.NoError(t, err)
	assert.NotNil(t, d.Orchestrator)
}

func TestNewDischarge_InvalidWindow(t *testing.T) {
	cfg := config.Default()
	cfg.Email.Window = "not a cron"

	_, err := NewDischarge(testDeps(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "followup planner")
}

func TestNewDischarge_MissingTemplates(t *testing.T) {
	cfg := config.Default()
	cfg.Email.TemplatesFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewDischarge(testDeps(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email templates")
}

func TestDefaultOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Orchestrator.Parallel = false
	cfg.Orchestrator.StopOnError = true

	opts := DefaultOptions(cfg)
	require.NotNil(t, opts.Parallel)
	assert.False(t, *opts.Parallel)
	assert.True(t, opts.StopOnError)

	// options не должны делить память с конфигурацией
	cfg.Orchestrator.Parallel = true
	assert.False(t, *opts.Parallel)
}

func TestOpenArchive(t *testing.T) {
	cfg := config.Default()

	a, err := OpenArchive(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, a)

	cfg.Archive.BucketURL = "file://" + filepath.ToSlash(t.TempDir())
	a, err = OpenArchive(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.NoError(t, a.Close())
}

func TestOpsMux_Healthz(t *testing.T) {
	mux := OpsMux(time.Now())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestOpsMux_FailingCheck(t *testing.T) {
	mux := OpsMux(time.Now(),
		HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis: connection refused", rec.Body.String())
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, "127.0.0.1:0", http.NewServeMux(), time.Second, telemetry.NewLogger("error", "text"))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewPlanner_UnknownTimezone(t *testing.T) {
	cfg := config.Default()
	cfg.Email.Timezone = "Mars/Olympus_Mons"

	p, err := NewPlanner(cfg)
	require.NoError(t, err)
	assert.NotNil(t, p)
}
