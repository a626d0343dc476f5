package api

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/event"
	"github.com/char5742/smoothcam/internal/features"
	"github.com/char5742/smoothcam/internal/rig"
	"github.com/char5742/smoothcam/internal/types"
)

var (
	ErrServiceRunning = errors.New("サービスは既に実行中です")
	ErrServiceStopped = errors.New("サービスは実行されていません")
	ErrShiftQueueFull = errors.New("原点移動の要求が多すぎます")
)

// 直近10秒分（90fps）のガタつきを集計する
const judderWindow = 900

// CameraStatus はカメラの最新状態
type CameraStatus struct {
	Pose           types.Pose           `json:"pose"`
	Orientation    mgl64.Quat           `json:"orientation"`
	Filter         features.FilterState `json:"filter"`
	Frames         uint64               `json:"frames"`
	MissedFrames   uint64               `json:"missed_frames"`
	RejectedFrames uint64               `json:"rejected_frames"`
	Pending        bool                 `json:"pending"`
	RenderMode     string               `json:"render_mode"`
	OriginOffset   mgl64.Vec3           `json:"origin_offset"`
}

// RigService はカメラリグのフレームループを管理する構造体
// フィルターの状態はフレームループのゴルーチンだけが変更する
type RigService struct {
	cfg          *config.Config
	host         rig.Host
	rig          *rig.Rig
	zoom         features.ZoomSource
	clock        features.Clock
	sink         features.RecordingSink
	judder       *features.JudderMeter
	judderID     uuid.UUID
	stopChan     chan struct{}
	doneChan     chan struct{}
	running      bool
	statusMutex  sync.RWMutex
	updateConfig chan *config.Config
	shiftChan    chan mgl64.Vec3

	// フレームループの外から読まれる値
	snapshotMutex sync.RWMutex
	snapshot      features.FilterState
	pending       bool
	renderMode    rig.RenderMode
	missed        atomic.Uint64
	rejected      atomic.Uint64
	missing       bool
}

// NewRigService は新しいカメラリグサービスを作成する
// zoomがnilの場合は設定のzoom_levelを毎フレーム読む
func NewRigService(cfg *config.Config, host rig.Host, zoom features.ZoomSource) *RigService {
	return &RigService{
		cfg:          cfg,
		host:         host,
		zoom:         zoom,
		clock:        features.NewClock(cfg.Loop.Clock),
		judder:       features.NewJudderMeter(judderWindow),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		updateConfig: make(chan *config.Config, 1),
		shiftChan:    make(chan mgl64.Vec3, 16),
	}
}

// Start はカメラリグをセットアップしてフレームループを開始する
func (s *RigService) Start() error {
	s.statusMutex.Lock()
	defer s.statusMutex.Unlock()

	if s.running {
		return ErrServiceRunning
	}

	if err := s.begin(); err != nil {
		return err
	}

	s.stopChan = make(chan struct{})
	s.doneChan = make(chan struct{})
	s.running = true

	// フレームループを開始
	go s.runFrameLoop()

	return nil
}

// begin はリグのセットアップとガタつき計測の購読を行う
func (s *RigService) begin() error {
	s.rig = rig.NewRig(s.host)
	if err := s.rig.Setup(); err != nil {
		return fmt.Errorf("カメラのセットアップに失敗しました: %w", err)
	}

	s.judder.Reset()
	s.judderID = s.host.WorldMover().Subscribe(func(ev event.OriginShiftEvent) {
		s.judder.Rebase(ev.Shift)
	})
	s.publish()
	return nil
}

// end はリグを破棄して購読を解除する
func (s *RigService) end() {
	s.host.WorldMover().Unsubscribe(s.judderID)
	if err := s.rig.Teardown(); err != nil {
		log.Printf("カメラの破棄に失敗しました: %v", err)
	}
	s.publish()
}

// Stop はフレームループを停止し、リグの破棄が終わるまで待つ
func (s *RigService) Stop() error {
	s.statusMutex.Lock()
	if !s.running {
		s.statusMutex.Unlock()
		return ErrServiceStopped
	}
	close(s.stopChan)
	s.running = false
	done := s.doneChan
	s.statusMutex.Unlock()

	// リグの破棄は runFrameLoop 内で行われる
	<-done
	return nil
}

// UpdateConfig は設定を更新する
func (s *RigService) UpdateConfig(cfg *config.Config) {
	select {
	case s.updateConfig <- cfg:
		// 設定更新チャネルに送信成功
	default:
		// チャネルがブロックされている場合は古い設定を破棄して新しい設定を送信
		select {
		case <-s.updateConfig:
		default:
		}
		s.updateConfig <- cfg
	}
}

// RequestOriginShift は次のフレームの前に原点を移動するよう要求する
func (s *RigService) RequestOriginShift(shift mgl64.Vec3) error {
	if !s.IsRunning() {
		return ErrServiceStopped
	}
	select {
	case s.shiftChan <- shift:
		return nil
	default:
		return ErrShiftQueueFull
	}
}

// IsRunning はサービスが実行中かどうかを返す
func (s *RigService) IsRunning() bool {
	s.statusMutex.RLock()
	defer s.statusMutex.RUnlock()
	return s.running
}

// Camera はカメラの最新状態を返す
func (s *RigService) Camera() CameraStatus {
	pose, frames := s.sink.Last()

	s.snapshotMutex.RLock()
	defer s.snapshotMutex.RUnlock()

	return CameraStatus{
		Pose:           pose,
		Orientation:    pose.Quat(),
		Filter:         s.snapshot,
		Frames:         frames,
		MissedFrames:   s.missed.Load(),
		RejectedFrames: s.rejected.Load(),
		Pending:        s.pending,
		RenderMode:     s.renderMode.String(),
		OriginOffset:   s.host.WorldMover().Offset(),
	}
}

// Judder はガタつきの集計結果を返す
func (s *RigService) Judder() features.JudderReport {
	return s.judder.Report()
}

// getCfg は設定更新があれば取り込んで現在の設定を返す
// 時計の種類が変わった場合は時計を作り直し、フィルターを初期化し直す
func (s *RigService) getCfg() *config.Config {
	select {
	case newCfg := <-s.updateConfig:
		log.Println("設定を更新しました")
		if newCfg.Loop.Clock != s.cfg.Loop.Clock {
			log.Printf("時計を切り替えます: %q -> %q", s.cfg.Loop.Clock, newCfg.Loop.Clock)
			s.clock = features.NewClock(newCfg.Loop.Clock)
			// 時刻の基準が変わるので前回の更新時刻との差は使えない
			if s.rig != nil {
				if cam := s.rig.Camera(); cam != nil {
					cam.Filter().Reset()
				}
			}
		}
		s.cfg = newCfg
	default:
	}
	return s.cfg
}

// zoomFactor はこのフレームのズーム倍率を返す
func (s *RigService) zoomFactor(cfg *config.Config) float64 {
	if s.zoom != nil {
		return s.zoom.FovZoomFactor()
	}
	return features.FixedZoom(cfg.Simulation.ZoomLevel).FovZoomFactor()
}

// frameInterval はフレームレートから1フレームの長さを求める
func frameInterval(cfg *config.Config) time.Duration {
	rate := cfg.Loop.FrameRate
	if rate <= 0 {
		rate = config.DefaultConfig().Loop.FrameRate
	}
	return time.Duration(float64(time.Second) / rate)
}

// runFrameLoop はフレームループ本体
func (s *RigService) runFrameLoop() {
	defer func() {
		// サービス終了時にリグを破棄
		s.end()
		close(s.doneChan)
		log.Println("カメラリグを停止しました")
	}()

	interval := frameInterval(s.cfg)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("フレームループを開始しました...")

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			cfg := s.step()
			if next := frameInterval(cfg); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// step は1フレーム分の処理を行う
func (s *RigService) step() *config.Config {
	cfg := s.getCfg()
	now := s.clock.Now()

	// 原点移動はフィルターを進める前に反映する
	s.applyShifts()

	s.host.Tick(now)
	defer s.publish()

	cam := s.rig.Camera()
	if cam == nil {
		return cfg
	}

	target := cam.Tracked().TrackedPose()
	if target != nil && !target.IsFinite() {
		s.rejected.Add(1)
		target = nil
	}

	pose, ok := cam.Filter().Tick(target, cfg.Smoothing, s.zoomFactor(cfg), now)
	if !ok {
		s.missed.Add(1)
		if !s.missing {
			log.Println("トラッキングカメラが見つかりません")
		}
		s.missing = true
		return cfg
	}
	if s.missing {
		log.Println("トラッキングカメラが復帰しました")
		s.missing = false
	}

	s.sink.SetPose(pose)
	s.judder.Add(target.Position, pose.Position)
	return cfg
}

// applyShifts は溜まっている原点移動の要求を順に配信する
func (s *RigService) applyShifts() {
	for {
		select {
		case shift := <-s.shiftChan:
			ev := s.host.WorldMover().Shift(shift)
			log.Printf("ワールド原点を移動しました: %v", ev.Shift)
		default:
			return
		}
	}
}

// publish はフレームループ外から読むための状態を更新する
func (s *RigService) publish() {
	s.snapshotMutex.Lock()
	defer s.snapshotMutex.Unlock()

	s.pending = s.rig.Pending()
	s.renderMode = s.host.RenderMode()
	if cam := s.rig.Camera(); cam != nil {
		s.snapshot = cam.Filter().State()
	} else {
		s.snapshot = features.FilterState{}
	}
}
