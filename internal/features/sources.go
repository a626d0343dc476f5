package features

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/char5742/smoothcam/internal/event"
	"github.com/char5742/smoothcam/internal/types"
)

// TrackedSource はトラッキングされたカメラの姿勢を提供するインターフェース
// カメラが無い場合はnilを返す
type TrackedSource interface {
	TrackedPose() *types.Pose
}

// ZoomSource はFOVのズーム倍率を提供するインターフェース
type ZoomSource interface {
	FovZoomFactor() float64
}

// CameraSink は平滑化された姿勢の出力先
type CameraSink interface {
	SetPose(pose types.Pose)
}

// FixedZoom は固定のズーム倍率
type FixedZoom float64

func (z FixedZoom) FovZoomFactor() float64 {
	if z == 0 {
		return 1
	}
	return float64(z)
}

// SimulatedHeadset は揺れとノイズを含む頭の動きを生成する擬似ヘッドセット
// ワールドに固定された物体として原点移動に追従する
type SimulatedHeadset struct {
	clock  Clock
	origin mgl64.Vec3
	start  time.Time
	jitter float64
	sway   float64
	fov    float64
	active bool
	rng    *rand.Rand
	mutex  sync.Mutex
}

// NewSimulatedHeadset は新しい擬似ヘッドセットを作成する
func NewSimulatedHeadset(clock Clock, origin mgl64.Vec3, jitter, sway float64) *SimulatedHeadset {
	return &SimulatedHeadset{
		clock:  clock,
		origin: origin,
		start:  clock.Now(),
		jitter: jitter,
		sway:   sway,
		fov:    100,
		active: true,
		rng:    rand.New(rand.NewPCG(1, 2)),
	}
}

// TrackedPose は現在の頭の姿勢を返す
func (h *SimulatedHeadset) TrackedPose() *types.Pose {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.active {
		return nil
	}

	t := h.clock.Now().Sub(h.start).Seconds()
	noise := func() float64 { return (h.rng.Float64()*2 - 1) * h.jitter }

	pose := &types.Pose{
		Position: h.origin.Add(mgl64.Vec3{
			0.05*math.Sin(t*0.7) + noise(),
			1.7 + 0.02*math.Sin(t*1.3) + noise(),
			noise(),
		}),
		Rotation: mgl64.Vec3{
			Repeat(h.sway*0.5*math.Sin(t*0.9)+noise()*100, 360),
			Repeat(h.sway*math.Sin(t*0.4)+noise()*100, 360),
			Repeat(h.sway*0.2*math.Sin(t*1.1)+noise()*100, 360),
		},
		FieldOfView: h.fov,
	}
	return pose
}

// SetActive はカメラの有無を切り替える
func (h *SimulatedHeadset) SetActive(active bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.active = active
}

// OnOriginShift は原点移動に合わせて基準位置を動かす
func (h *SimulatedHeadset) OnOriginShift(ev event.OriginShiftEvent) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.origin = h.origin.Sub(ev.Shift)
}

// RecordingSink は最後に出力された姿勢を保持する出力先
type RecordingSink struct {
	last   types.Pose
	frames uint64
	mutex  sync.RWMutex
}

func (s *RecordingSink) SetPose(pose types.Pose) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.last = pose
	s.frames++
}

// Last は最後の姿勢と出力回数を返す
func (s *RecordingSink) Last() (types.Pose, uint64) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.last, s.frames
}
