package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/rig"
)

// ルートの設定
func (s *Server) setupRoutes(router *http.ServeMux) {
	// 設定関連のエンドポイント
	router.HandleFunc("GET /api/config", s.handleGetConfig)
	router.HandleFunc("PUT /api/config", s.handleUpdateConfig)
	router.HandleFunc("POST /api/config/save", s.handleSaveConfig)

	// サービス関連のエンドポイント
	router.HandleFunc("POST /api/service/start", s.handleStartService)
	router.HandleFunc("POST /api/service/stop", s.handleStopService)
	router.HandleFunc("GET /api/service/status", s.handleServiceStatus)

	// カメラ関連のエンドポイント
	router.HandleFunc("GET /api/camera", s.handleGetCamera)
	router.HandleFunc("GET /api/judder", s.handleGetJudder)
	router.HandleFunc("POST /api/world/shift", s.handleWorldShift)

	// ヘルスチェック用エンドポイント
	router.HandleFunc("GET /api/health", s.handleHealthCheck)
}

// 設定取得ハンドラ
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.GetConfig())
}

// 設定更新ハンドラ
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	// 指定されなかった項目は現在の値を引き継ぐ
	newConfig := s.GetConfig()

	if err := json.NewDecoder(r.Body).Decode(newConfig); err != nil {
		writeError(w, http.StatusBadRequest, "設定の解析に失敗しました")
		return
	}

	if err := newConfig.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.UpdateConfig(newConfig)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// 設定保存ハンドラ
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var saveRequest struct {
		Path string `json:"path"`
	}

	if err := json.NewDecoder(r.Body).Decode(&saveRequest); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	configPath := saveRequest.Path
	if configPath == "" {
		// デフォルトパスを使用
		userConfigDir, err := config.GetDefaultConfigDir()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "デフォルト設定ディレクトリの取得に失敗しました")
			return
		}
		configPath = filepath.Join(userConfigDir, "config.toml")
	}

	if err := config.SaveConfig(configPath, s.GetConfig()); err != nil {
		writeError(w, http.StatusInternalServerError, "設定の保存に失敗しました: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"path":   configPath,
	})
}

// サービス起動ハンドラ
func (s *Server) handleStartService(w http.ResponseWriter, r *http.Request) {
	err := s.rigService.Start()
	switch {
	case errors.Is(err, ErrServiceRunning):
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_running"})
	case errors.Is(err, rig.ErrVRDisabled):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "サービスの起動に失敗しました: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
	}
}

// サービス停止ハンドラ
func (s *Server) handleStopService(w http.ResponseWriter, r *http.Request) {
	if err := s.rigService.Stop(); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_running"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// サービス状態取得ハンドラ
func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	status := "stopped"
	if s.rigService.IsRunning() {
		status = "running"
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// カメラ状態取得ハンドラ
func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rigService.Camera())
}

// ガタつき集計取得ハンドラ
func (s *Server) handleGetJudder(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rigService.Judder())
}

// 原点移動ハンドラ
func (s *Server) handleWorldShift(w http.ResponseWriter, r *http.Request) {
	var request struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの解析に失敗しました")
		return
	}

	err := s.rigService.RequestOriginShift(mgl64.Vec3{request.X, request.Y, request.Z})
	switch {
	case errors.Is(err, ErrServiceStopped):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrShiftQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	}
}

// ヘルスチェックハンドラ
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
