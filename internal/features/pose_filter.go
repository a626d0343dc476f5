package features

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/types"
)

// FilterState はPoseFilterの内部状態のスナップショット
type FilterState struct {
	Position         mgl64.Vec3 `json:"position"`
	Rotation         mgl64.Vec3 `json:"rotation"`
	PositionVelocity mgl64.Vec3 `json:"position_velocity"`
	RotationVelocity mgl64.Vec3 `json:"rotation_velocity"` // オイラー角の軸ごとの角速度（度/秒）
	LastUpdate       time.Time  `json:"last_update"`
	Initialized      bool       `json:"initialized"`
}

// PoseFilter はトラッキングされたカメラの姿勢を時間方向に平滑化します
// 並行アクセスには対応していないので、同じゴルーチンから呼び出すこと
type PoseFilter struct {
	state      FilterState
	lastOutput types.Pose
}

// 新しい姿勢フィルターを作成します
func NewPoseFilter() *PoseFilter {
	return &PoseFilter{}
}

// Initialize は状態を目標姿勢にそのまま合わせ、速度を0にします
func (pf *PoseFilter) Initialize(target types.Pose, now time.Time) {
	pf.state = FilterState{
		Position:    target.Position,
		Rotation:    target.Rotation,
		LastUpdate:  now,
		Initialized: true,
	}
	pf.lastOutput = target
}

// Tick は1フレーム分フィルターを進め、描画する姿勢を返します
// targetがnilの場合は状態を更新せず、前回の出力とfalseを返します
func (pf *PoseFilter) Tick(target *types.Pose, cfg config.SmoothingConfig, zoom float64, now time.Time) (types.Pose, bool) {
	if target == nil {
		return pf.lastOutput, false
	}

	fov := cfg.FieldOfView / sanitizeZoom(zoom)

	// 初回は目標姿勢にそのまま合わせる
	if !pf.state.Initialized {
		pf.Initialize(*target, now)
		pf.lastOutput.FieldOfView = fov
		return pf.lastOutput, true
	}

	// 時計が巻き戻った場合は経過時間を0として扱う
	deltaTime := math.Max(0, now.Sub(pf.state.LastUpdate).Seconds())
	pf.state.LastUpdate = now

	pf.state.Position = SmoothDampVec3(
		pf.state.Position, target.Position, &pf.state.PositionVelocity,
		cfg.SmoothTimePosition, math.Inf(1), deltaTime)

	var rotation mgl64.Vec3
	for axis := 0; axis < 3; axis++ {
		angle := SmoothDampAngle(
			pf.state.Rotation[axis], target.Rotation[axis], &pf.state.RotationVelocity[axis],
			cfg.SmoothTimeRotation, math.Inf(1), deltaTime)
		rotation[axis] = Repeat(angle, 360)
	}
	pf.state.Rotation = rotation

	pf.lastOutput = types.Pose{
		Position:    pf.state.Position,
		Rotation:    pf.state.Rotation,
		FieldOfView: fov,
	}
	return pf.lastOutput, true
}

// Rebase は平滑化済みの位置から原点の移動量を差し引きます
// 速度・回転・時刻は変更しません
func (pf *PoseFilter) Rebase(shift mgl64.Vec3) {
	pf.state.Position = pf.state.Position.Sub(shift)
	// 出力済みのカメラもワールドと一緒に動く
	pf.lastOutput.Position = pf.lastOutput.Position.Sub(shift)
}

// State は現在の内部状態を返します
func (pf *PoseFilter) State() FilterState {
	return pf.state
}

// LastOutput は最後に出力した姿勢を返します
func (pf *PoseFilter) LastOutput() types.Pose {
	return pf.lastOutput
}

// フィルターの状態をリセットします
func (pf *PoseFilter) Reset() {
	pf.state = FilterState{}
	pf.lastOutput = types.Pose{}
}

// ズーム倍率が使えない値なら1.0とみなす
func sanitizeZoom(zoom float64) float64 {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return 1
	}
	return zoom
}
