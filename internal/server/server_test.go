package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skushagra-sst/visit-counter/internal/config"
	"github.com/skushagra-sst/visit-counter/pkg/logger"
)

// stubEngine satisfies handlers.VisitCounter.
type stubEngine struct {
	visits int64
}

func (s *stubEngine) RecordVisit(pageID string) error {
	s.visits++
	return nil
}

func (s *stubEngine) Visits(ctx context.Context, pageID string) (int64, string, error) {
	return s.visits, "in_memory", nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Env:      "test",
			LogLevel: "error",
		},
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            0, // let the OS assign a port
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
	}
}

func TestNewServer(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), &stubEngine{}, log)

	assert.NotNil(t, srv)
	assert.NotNil(t, srv.HealthHandler())
	assert.False(t, srv.IsRunning())
}

func TestServer_StartAndShutdown(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), &stubEngine{visits: 7}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, time.Second, 10*time.Millisecond)

	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(base + "/api/v1/counter/visits/home")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(7), body["visits"])
	assert.Equal(t, "in_memory", body["served_via"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
	assert.False(t, srv.IsRunning())
}

func TestServer_MethodRouting(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(&buf, "error")

	srv := New(testConfig(), &stubEngine{}, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	require.Eventually(t, func() bool {
		return srv.Addr() != ""
	}, time.Second, 10*time.Millisecond)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		<-errCh
	}()

	base := "http://" + srv.Addr()

	// Recording a visit requires POST.
	resp, err := http.Get(base + "/api/v1/counter/visit/home")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(base+"/api/v1/counter/visit/home", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
