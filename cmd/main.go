package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/browser"

	"github.com/char5742/smoothcam/internal/api"
	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/features"
	"github.com/char5742/smoothcam/internal/rig"
)

// 擬似ホストがワールドを読み込むのにかかるフレーム数
const simLoadFrames = 90

func main() {
	// コマンドライン引数の解析
	useApi := flag.Bool("api", false, "APIサーバーモードで起動します")
	configPath := flag.String("config", "", "設定ファイルのパス (指定しない場合はデフォルトパスを使用)")
	port := flag.Int("port", 0, "APIサーバーのポート番号 (0の場合は設定ファイルの値を使用)")
	openBrowser := flag.Bool("open", false, "起動後にブラウザでカメラの状態を開きます")
	watch := flag.Bool("watch", false, "設定ファイルの変更を監視して自動で反映します")
	flag.Parse()

	// デフォルト設定ファイルパスの設定
	defaultConfigPath := ""
	configDir, err := config.GetDefaultConfigDir()
	if err == nil {
		defaultConfigPath = filepath.Join(configDir, "config.toml")
	}

	// 設定ファイルパスの決定
	cfgPath := defaultConfigPath
	if *configPath != "" {
		cfgPath = *configPath
	}

	// 設定ファイルの読み込み
	var cfg *config.Config
	if cfgPath != "" {
		cfg, err = config.LoadConfig(cfgPath)
		if err != nil {
			fmt.Printf("設定ファイルの読み込みに失敗しました: %v\nデフォルト設定を使用します\n", err)
			cfg = config.DefaultConfig()
		} else {
			fmt.Printf("設定ファイルを読み込みました: %s\n", cfgPath)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if *port == 0 {
		*port = cfg.API.Port
	}

	// カメラリグの準備
	host := rig.NewSimHost(features.NewClock(cfg.Loop.Clock), cfg.Simulation, simLoadFrames)
	service := api.NewRigService(cfg, host, nil)

	// APIモードかCLIモードかを判断
	if *useApi {
		// APIモードで実行
		fmt.Printf("APIサーバーモードで起動します (ポート: %d)...\n", *port)
		server := api.NewServer(cfg, *port, service)
		// 停止処理が終わるまでmainを終了させない
		stopped := make(chan struct{})
		handleSignals(func() {
			defer close(stopped)
			if err := server.Stop(); err != nil {
				log.Printf("APIサーバーの停止に失敗しました: %v", err)
			}
		})
		if *watch {
			watchConfig(cfgPath, server.UpdateConfig)
		}
		if *openBrowser {
			go openStatusPage(*port)
		}
		runApiServer(server)
		<-stopped
	} else {
		// CLIモードで実行
		fmt.Println("CLIモードで起動します...")
		handleSignals(func() {
			if err := service.Stop(); err != nil {
				log.Printf("カメラリグの停止に失敗しました: %v", err)
			}
			os.Exit(0)
		})
		if *watch {
			watchConfig(cfgPath, service.UpdateConfig)
		}
		runCLI(service)
	}
}

// APIサーバーモードでの実行
func runApiServer(server *api.Server) {
	if err := server.Start(); err != nil {
		log.Fatalf("APIサーバーの起動に失敗しました: %v", err)
	}
}

// CLIモードでの実行
func runCLI(service *api.RigService) {
	if err := service.Start(); err != nil {
		fmt.Printf("カメラリグの起動に失敗しました: %v\n", err)
		os.Exit(1)
	}

	// シグナルが来るまで1秒ごとに状態を表示（終了処理はhandleSignals内で行われる）
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		status := service.Camera()
		if status.Pending {
			log.Println("ワールドの読み込みを待っています...")
			continue
		}
		report := service.Judder()
		log.Printf("位置: %.3f 回転: %.1f FOV: %.1f フレーム: %d 欠損: %d ガタつき: %.5f -> %.5f",
			status.Pose.Position, status.Pose.Rotation, status.Pose.FieldOfView,
			status.Frames, status.MissedFrames, report.RawMean, report.SmoothedMean)
	}
}

// watchConfig は設定ファイルの変更を監視し、読み直した設定をapplyに渡す
func watchConfig(path string, apply func(cfg *config.Config)) {
	if path == "" {
		log.Println("設定ファイルのパスが不明なため監視をスキップします")
		return
	}

	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Printf("設定ファイルの監視を開始できません: %v", err)
		return
	}
	watcher.OnReload(apply)
	if err := watcher.Start(); err != nil {
		log.Printf("設定ファイルの監視を開始できません: %v", err)
		return
	}
	log.Printf("設定ファイルを監視しています: %s", path)
}

// openStatusPage はサーバーの起動を少し待ってからブラウザを開く
func openStatusPage(port int) {
	time.Sleep(500 * time.Millisecond)
	url := fmt.Sprintf("http://localhost:%d/api/camera", port)
	if err := browser.OpenURL(url); err != nil {
		log.Printf("ブラウザを開けませんでした: %v", err)
	}
}

// handleSignals はSIGINT/SIGTERMを受け取ったらshutdownを呼ぶ
func handleSignals(shutdown func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("シャットダウンします...")
		shutdown()
	}()
}
