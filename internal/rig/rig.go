package rig

import (
	"errors"
	"log"
	"time"

	"github.com/char5742/smoothcam/internal/event"
	"github.com/char5742/smoothcam/internal/features"
)

// CameraName は平滑化カメラの名前
const CameraName = "SmoothCamera"

// 平滑化カメラはトラッキングカメラより手前に描画する
const depthOffset = 20

var (
	ErrVRDisabled   = errors.New("VRモードではありません")
	ErrAlreadySetUp = errors.New("平滑化カメラは既に存在します")
	ErrNotSetUp     = errors.New("平滑化カメラが見つかりません")
)

// RenderMode はホストの画面出力モード
type RenderMode int

const (
	RenderModeNone RenderMode = iota
	RenderModeLeftEye
	RenderModeRightEye
	RenderModeBothEyes
)

func (m RenderMode) String() string {
	switch m {
	case RenderModeNone:
		return "None"
	case RenderModeLeftEye:
		return "LeftEye"
	case RenderModeRightEye:
		return "RightEye"
	case RenderModeBothEyes:
		return "BothEyes"
	default:
		return "Unknown"
	}
}

// Camera はホスト側のトラッキングされたカメラ
type Camera interface {
	features.TrackedSource
	Depth() float64
}

// CullingSystem はカメラ単位でカリングを行うホストのシステム
type CullingSystem interface {
	AddCamera(cam *SmoothCamera)
	RemoveCamera(cam *SmoothCamera)
}

// Host はカメラリグが依存するホスト環境
type Host interface {
	VREnabled() bool
	// 読み込みが終わるまではnilを返す
	MainCamera() Camera
	Culling() CullingSystem
	RenderMode() RenderMode
	SetRenderMode(mode RenderMode)
	// 読み込み完了時に一度だけ呼ばれる関数を登録する
	OnLoadingFinished(fn func())
	WorldMover() *event.WorldMover
	// フレームループの先頭で毎フレーム呼ばれる
	Tick(now time.Time)
}

// SmoothCamera はトラッキングカメラを平滑化して追従するカメラ
type SmoothCamera struct {
	Name    string
	Depth   float64
	tracked Camera
	filter  *features.PoseFilter
	adapter *features.OriginShiftAdapter
}

// Tracked は追従対象のカメラを返す
func (c *SmoothCamera) Tracked() Camera {
	return c.tracked
}

// Filter は姿勢フィルターを返す
func (c *SmoothCamera) Filter() *features.PoseFilter {
	return c.filter
}

// Rig は平滑化カメラの生成と破棄を管理する
type Rig struct {
	host              Host
	camera            *SmoothCamera
	defaultRenderMode RenderMode
	pending           bool
}

// NewRig は新しいRigを作成する
func NewRig(host Host) *Rig {
	return &Rig{host: host}
}

// Setup は平滑化カメラを作成する
// ホストの読み込みが終わっていない場合は読み込み完了まで遅延する
func (r *Rig) Setup() error {
	if !r.host.VREnabled() {
		log.Println("VRモードではないためカメラのセットアップをスキップします")
		return ErrVRDisabled
	}

	if r.camera != nil || r.pending {
		log.Println("平滑化カメラは既に存在するためセットアップをスキップします")
		return ErrAlreadySetUp
	}

	if r.host.MainCamera() == nil || r.host.Culling() == nil {
		log.Println("カメラのセットアップを読み込み完了まで遅延します")
		r.pending = true
		r.host.OnLoadingFinished(func() {
			// 遅延中にTeardownされた場合は何もしない
			if !r.pending {
				return
			}
			r.pending = false
			r.setupMainCamera()
		})
		return nil
	}

	r.setupMainCamera()
	return nil
}

// setupMainCamera は平滑化カメラを作成してホストに登録する
func (r *Rig) setupMainCamera() {
	log.Println("メインカメラをセットアップします")

	target := r.host.MainCamera()
	filter := features.NewPoseFilter()
	cam := &SmoothCamera{
		Name:    CameraName,
		Depth:   target.Depth() + depthOffset,
		tracked: target,
		filter:  filter,
		adapter: features.NewOriginShiftAdapter(r.host.WorldMover(), filter),
	}
	cam.adapter.Attach()

	r.host.Culling().AddCamera(cam)
	r.defaultRenderMode = r.host.RenderMode()
	r.host.SetRenderMode(RenderModeNone)
	r.camera = cam
}

// Teardown は平滑化カメラを破棄し、ホストの状態を元に戻す
func (r *Rig) Teardown() error {
	log.Println("カメラを破棄します")

	if r.pending {
		r.pending = false
		return nil
	}

	if r.camera == nil {
		log.Println("平滑化カメラが見つからないため破棄をスキップします")
		return ErrNotSetUp
	}

	// フィルターを捨てる前に購読を解除する
	r.camera.adapter.Detach()
	if culling := r.host.Culling(); culling != nil {
		culling.RemoveCamera(r.camera)
	}
	r.host.SetRenderMode(r.defaultRenderMode)
	r.camera.filter.Reset()
	r.camera = nil
	return nil
}

// Camera は平滑化カメラを返す。未作成の場合はnil
func (r *Rig) Camera() *SmoothCamera {
	return r.camera
}

// Pending はセットアップが読み込み完了待ちかどうかを返す
func (r *Rig) Pending() bool {
	return r.pending
}
