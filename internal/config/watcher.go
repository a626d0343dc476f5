package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// ReloadCallback は設定ファイルが再読み込みされた時に呼び出される
type ReloadCallback func(cfg *Config)

// Watcher は設定ファイルの変更を監視し、変更後の設定を通知する
type Watcher struct {
	watcher   *fsnotify.Watcher
	path      string
	callbacks []ReloadCallback
	debounce  time.Duration
	mutex     sync.RWMutex
	stopChan  chan struct{}
	doneChan  chan struct{}
	isRunning bool
}

// NewWatcher は新しいWatcherを作成する
func NewWatcher(configPath string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  watcher,
		path:     filepath.Clean(configPath),
		debounce: 500 * time.Millisecond,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// OnReload はコールバック関数を登録する
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start は設定ファイルの監視を開始する
func (w *Watcher) Start() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.isRunning {
		return nil // すでに実行中
	}

	// エディタはリネームで保存することがあるのでディレクトリごと監視する
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("ディレクトリの監視に失敗しました: %s: %w", dir, err)
	}
	log.Printf("設定ファイルの監視を開始: %s", w.path)

	w.isRunning = true
	go w.watchEvents()
	return nil
}

// Stop は監視を停止する
func (w *Watcher) Stop() error {
	w.mutex.Lock()
	if !w.isRunning {
		w.mutex.Unlock()
		return w.watcher.Close()
	}
	w.isRunning = false
	close(w.stopChan)
	w.mutex.Unlock()

	<-w.doneChan
	return w.watcher.Close()
}

// reload は設定ファイルを読み直してコールバックへ通知する
func (w *Watcher) reload() {
	if _, err := os.Stat(w.path); err != nil {
		log.Printf("設定ファイルが見つかりません: %s", w.path)
		return
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(w.path, cfg); err != nil {
		log.Printf("設定ファイルの解析に失敗しました: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("設定ファイルを無視します: %v", err)
		return
	}

	log.Printf("設定ファイルを再読み込みしました: %s", w.path)

	w.mutex.RLock()
	callbacks := append([]ReloadCallback(nil), w.callbacks...)
	w.mutex.RUnlock()

	for _, callback := range callbacks {
		callback(cfg)
	}
}

// watchEvents はfsnotifyのイベントを監視する
func (w *Watcher) watchEvents() {
	defer close(w.doneChan)

	// 連続した書き込みイベントをまとめて処理するためのタイマー
	eventTimer := time.NewTimer(w.debounce)
	eventTimer.Stop()
	pendingReload := false

	for {
		select {
		case <-w.stopChan:
			eventTimer.Stop()
			log.Println("設定ファイルの監視を停止します")
			return

		case <-eventTimer.C:
			if pendingReload {
				pendingReload = false
				w.reload()
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				log.Println("イベントチャネルが閉じられました")
				return
			}

			if filepath.Clean(event.Name) != w.path {
				continue
			}

			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				// タイマーをリセットして複数のイベントをまとめる
				pendingReload = true
				eventTimer.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				log.Println("エラーチャネルが閉じられました")
				return
			}
			log.Printf("ファイルシステム監視エラー: %v", err)
		}
	}
}
