package features

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/char5742/smoothcam/internal/event"
)

// OriginShiftSource はワールド原点の移動を配信するインターフェース
type OriginShiftSource interface {
	Subscribe(handler event.OriginShiftHandler) uuid.UUID
	Unsubscribe(id uuid.UUID) bool
}

// OriginShiftAdapter は原点移動に合わせてPoseFilterの状態を付け替える
// フィルターを破棄する前に必ずDetachすること
type OriginShiftAdapter struct {
	source   OriginShiftSource
	filter   *PoseFilter
	id       uuid.UUID
	attached bool
}

// NewOriginShiftAdapter は新しいアダプターを作成する
// 購読はAttachを呼ぶまで行わない
func NewOriginShiftAdapter(source OriginShiftSource, filter *PoseFilter) *OriginShiftAdapter {
	return &OriginShiftAdapter{
		source: source,
		filter: filter,
	}
}

// Attach は原点移動イベントを購読する
func (a *OriginShiftAdapter) Attach() {
	if a.attached {
		return
	}
	a.id = a.source.Subscribe(func(ev event.OriginShiftEvent) {
		a.OnOriginShift(ev.Shift)
	})
	a.attached = true
}

// Detach は購読を解除する
func (a *OriginShiftAdapter) Detach() {
	if !a.attached {
		return
	}
	a.source.Unsubscribe(a.id)
	a.id = uuid.Nil
	a.attached = false
}

// Attached は購読中かどうかを返す
func (a *OriginShiftAdapter) Attached() bool {
	return a.attached
}

// OnOriginShift は平滑化済みの位置から移動量を差し引く
// 1回のイベントにつき1回だけ呼ぶこと（2回呼ぶと2重に差し引かれる）
func (a *OriginShiftAdapter) OnOriginShift(shift mgl64.Vec3) {
	a.filter.Rebase(shift)
}
