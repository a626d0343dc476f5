package types

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Pose はカメラの姿勢（位置・回転・視野角）を表す構造体
type Pose struct {
	Position    mgl64.Vec3 `json:"position"`      // ワールド座標
	Rotation    mgl64.Vec3 `json:"rotation"`      // オイラー角（度）。x=ピッチ, y=ヨー, z=ロール
	FieldOfView float64    `json:"field_of_view"` // 垂直視野角（度）
}

// Quat はオイラー角を四元数に組み立てる
// 回転はZ→X→Yの順に適用される
func (p Pose) Quat() mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(p.Rotation.Y()),
		mgl64.DegToRad(p.Rotation.X()),
		mgl64.DegToRad(p.Rotation.Z()),
		mgl64.YXZ,
	)
}

// IsFinite は全ての成分が有限値かどうかを返す
func (p Pose) IsFinite() bool {
	for i := 0; i < 3; i++ {
		if !finite(p.Position[i]) || !finite(p.Rotation[i]) {
			return false
		}
	}
	return finite(p.FieldOfView)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
