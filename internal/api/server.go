package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/char5742/smoothcam/internal/config"
)

// 停止時にリクエストの完了を待つ最大時間
const shutdownTimeout = 5 * time.Second

// Server はカメラリグを操作するHTTPサーバー
// 設定の正本を持ち、変更はフレームループにも転送する
type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	cfgMutex   sync.RWMutex
	rigService *RigService
	port       int
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(cfg *config.Config, port int, service *RigService) *Server {
	s := &Server{
		cfg:        cfg,
		rigService: service,
		port:       port,
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler はAPIのルーティングを返す
func (s *Server) Handler() http.Handler {
	router := http.NewServeMux()
	s.setupRoutes(router)
	return router
}

// Start はAPIサーバーを開始し、Stopされるまでブロックする
func (s *Server) Start() error {
	log.Printf("APIサーバーを開始します: http://localhost:%d", s.port)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop はフレームループを止めてからHTTPサーバーを閉じる
func (s *Server) Stop() error {
	if err := s.rigService.Stop(); err != nil && !errors.Is(err, ErrServiceStopped) {
		log.Printf("カメラリグの停止に失敗しました: %v", err)
	}

	log.Println("APIサーバーを停止します...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// GetConfig は現在の設定のコピーを返す
func (s *Server) GetConfig() *config.Config {
	s.cfgMutex.RLock()
	defer s.cfgMutex.RUnlock()
	cfg := *s.cfg
	return &cfg
}

// UpdateConfig は設定を差し替え、次のフレームから反映させる
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.cfgMutex.Lock()
	s.cfg = cfg
	s.cfgMutex.Unlock()

	s.rigService.UpdateConfig(cfg)
}

// writeJSON はJSONレスポンスを書き込む
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("JSONエンコードエラー: %v", err)
	}
}

// writeError は {"error": message} を返す
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
