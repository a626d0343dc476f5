package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/features"
	"github.com/char5742/smoothcam/internal/rig"
)

func newTestServer(t *testing.T) (*Server, *RigService, http.Handler) {
	t.Helper()
	cfg := config.DefaultConfig()
	host := rig.NewSimHost(features.MonotonicClock{}, cfg.Simulation, 0)
	service := NewRigService(cfg, host, nil)
	server := NewServer(cfg, 0, service)
	t.Cleanup(func() {
		if service.IsRunning() {
			service.Stop()
		}
	})
	return server, service, server.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestRoutes_Health(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_GetConfig(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg config.Config
	decodeBody(t, rec, &cfg)
	assert.Equal(t, *config.DefaultConfig(), cfg)
}

func TestRoutes_UpdateConfig(t *testing.T) {
	server, service, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPut, "/api/config", `{"smoothing":{"smooth_time_position":0.3}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := server.GetConfig()
	assert.Equal(t, 0.3, got.Smoothing.SmoothTimePosition)
	assert.Equal(t, 0.1, got.Smoothing.SmoothTimeRotation, "unspecified fields keep their values")

	// フレームループにも届いている
	assert.Equal(t, 0.3, service.getCfg().Smoothing.SmoothTimePosition)

	rec = doRequest(t, h, http.MethodPut, "/api/config", `{"simulation":{"zoom_level":2}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, service.getCfg().Simulation.ZoomLevel)
	assert.Equal(t, 2.0, service.zoomFactor(service.getCfg()))
}

func TestRoutes_UpdateConfigRejectsInvalid(t *testing.T) {
	server, _, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPut, "/api/config", `{"smoothing":{"field_of_view":0}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPut, "/api/config", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, config.DefaultConfig(), server.GetConfig())
}

func TestRoutes_SaveConfig(t *testing.T) {
	_, _, h := newTestServer(t)
	path := filepath.Join(t.TempDir(), "saved.toml")

	rec := doRequest(t, h, http.MethodPost, "/api/config/save", `{"path":"`+filepath.ToSlash(path)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "success", body["status"])

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)
}

func TestRoutes_ServiceLifecycle(t *testing.T) {
	_, _, h := newTestServer(t)

	statusOf := func(rec *httptest.ResponseRecorder) string {
		var body map[string]string
		decodeBody(t, rec, &body)
		return body["status"]
	}

	assert.Equal(t, "stopped", statusOf(doRequest(t, h, http.MethodGet, "/api/service/status", "")))
	assert.Equal(t, "started", statusOf(doRequest(t, h, http.MethodPost, "/api/service/start", "")))
	assert.Equal(t, "already_running", statusOf(doRequest(t, h, http.MethodPost, "/api/service/start", "")))
	assert.Equal(t, "running", statusOf(doRequest(t, h, http.MethodGet, "/api/service/status", "")))

	rec := doRequest(t, h, http.MethodPost, "/api/world/shift", `{"x":10,"y":0,"z":-5}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		var status CameraStatus
		decodeBody(t, doRequest(t, h, http.MethodGet, "/api/camera", ""), &status)
		return status.Frames > 0 && status.OriginOffset.X() == 10
	}, 2*time.Second, 10*time.Millisecond)

	rec = doRequest(t, h, http.MethodGet, "/api/judder", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "stopped", statusOf(doRequest(t, h, http.MethodPost, "/api/service/stop", "")))
	assert.Equal(t, "not_running", statusOf(doRequest(t, h, http.MethodPost, "/api/service/stop", "")))
}

func TestRoutes_WorldShiftWhenStopped(t *testing.T) {
	_, _, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/world/shift", `{"x":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/api/world/shift", `garbage`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_StartWithoutVR(t *testing.T) {
	cfg := config.DefaultConfig()
	host := rig.NewSimHost(features.MonotonicClock{}, cfg.Simulation, 0)
	host.SetVREnabled(false)
	h := NewServer(cfg, 0, NewRigService(cfg, host, nil)).Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/service/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestServer_StopStopsService(t *testing.T) {
	server, service, h := newTestServer(t)

	rec := doRequest(t, h, http.MethodPost, "/api/service/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, service.IsRunning())

	require.NoError(t, server.Stop())
	assert.False(t, service.IsRunning())

	// 閉じた後のStartはエラーにならずにすぐ戻る
	assert.NoError(t, server.Start())

	// フレームループが止まっていても二度目のStopは失敗しない
	assert.NoError(t, server.Stop())
}
