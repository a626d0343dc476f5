package rig

import (
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/event"
	"github.com/char5742/smoothcam/internal/features"
)

// SimCamera は擬似ヘッドセットを追従するホスト側のカメラ
type SimCamera struct {
	*features.SimulatedHeadset
	depth float64
}

func (c *SimCamera) Depth() float64 {
	return c.depth
}

// SimCulling はAddCamera/RemoveCameraの呼び出しを記録する
type SimCulling struct {
	cameras []*SmoothCamera
	mutex   sync.Mutex
}

func (c *SimCulling) AddCamera(cam *SmoothCamera) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cameras = append(c.cameras, cam)
}

func (c *SimCulling) RemoveCamera(cam *SmoothCamera) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i, registered := range c.cameras {
		if registered == cam {
			c.cameras = append(c.cameras[:i], c.cameras[i+1:]...)
			return
		}
	}
}

// Cameras は登録中のカメラ数を返す
func (c *SimCulling) Cameras() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cameras)
}

// SimHost はプロセス内で完結する擬似ホスト
// 指定フレーム数だけ読み込み中の状態を続けてからカメラを用意する
type SimHost struct {
	vrEnabled  bool
	loadFrames int
	frames     int
	loaded     bool
	camera     *SimCamera
	culling    *SimCulling
	renderMode RenderMode
	mover      *event.WorldMover
	onLoaded   []func()
}

// NewSimHost は新しい擬似ホストを作成する
func NewSimHost(clock features.Clock, sim config.SimulationConfig, loadFrames int) *SimHost {
	mover := event.NewWorldMover()
	headset := features.NewSimulatedHeadset(clock, mgl64.Vec3{}, sim.Jitter, sim.Sway)
	// ヘッドセットはワールドに固定された物体なので原点移動に追従させる
	mover.Subscribe(headset.OnOriginShift)

	h := &SimHost{
		vrEnabled:  true,
		loadFrames: loadFrames,
		camera:     &SimCamera{SimulatedHeadset: headset},
		culling:    &SimCulling{},
		renderMode: RenderModeBothEyes,
		mover:      mover,
	}
	if loadFrames <= 0 {
		h.loaded = true
	}
	return h
}

// SetVREnabled はVRモードを切り替える
func (h *SimHost) SetVREnabled(enabled bool) {
	h.vrEnabled = enabled
}

func (h *SimHost) VREnabled() bool {
	return h.vrEnabled
}

func (h *SimHost) MainCamera() Camera {
	if !h.loaded {
		return nil
	}
	return h.camera
}

func (h *SimHost) Culling() CullingSystem {
	if !h.loaded {
		return nil
	}
	return h.culling
}

func (h *SimHost) RenderMode() RenderMode {
	return h.renderMode
}

func (h *SimHost) SetRenderMode(mode RenderMode) {
	h.renderMode = mode
}

func (h *SimHost) OnLoadingFinished(fn func()) {
	h.onLoaded = append(h.onLoaded, fn)
}

func (h *SimHost) WorldMover() *event.WorldMover {
	return h.mover
}

// Tick はフレームを進め、読み込みが終わったらコールバックを呼び出す
func (h *SimHost) Tick(now time.Time) {
	if h.loaded {
		return
	}
	h.frames++
	if h.frames < h.loadFrames {
		return
	}

	log.Println("ワールドの読み込みが完了しました")
	h.loaded = true
	callbacks := h.onLoaded
	h.onLoaded = nil
	for _, fn := range callbacks {
		fn()
	}
}

// Headset は擬似ヘッドセットを返す
func (h *SimHost) Headset() *features.SimulatedHeadset {
	return h.camera.SimulatedHeadset
}

// CullingRecorder はカリングシステムを読み込み状態に関係なく返す
func (h *SimHost) CullingRecorder() *SimCulling {
	return h.culling
}
