package event

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// OriginShiftEvent はワールド原点の移動を表すイベント
type OriginShiftEvent struct {
	Shift mgl64.Vec3 // 原点の移動量
	Time  time.Time  // 発生時刻
}

// OriginShiftHandler は原点移動時に呼び出されるコールバック関数の型
type OriginShiftHandler func(ev OriginShiftEvent)

type subscription struct {
	id      uuid.UUID
	handler OriginShiftHandler
}

// WorldMover はワールド原点の移動を購読者へ配信する
// 配信はShiftを呼んだゴルーチン上で同期的に行われる
type WorldMover struct {
	subs   []subscription
	offset mgl64.Vec3
	mutex  sync.RWMutex
	now    func() time.Time
}

// NewWorldMover は新しいWorldMoverを作成する
func NewWorldMover() *WorldMover {
	return &WorldMover{now: time.Now}
}

// Subscribe はハンドラを登録し、解除用のIDを返す
func (w *WorldMover) Subscribe(handler OriginShiftHandler) uuid.UUID {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	id := uuid.New()
	w.subs = append(w.subs, subscription{id: id, handler: handler})
	return id
}

// Unsubscribe は登録済みのハンドラを解除する
// 見つからなかった場合はfalseを返す
func (w *WorldMover) Unsubscribe(id uuid.UUID) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	for i, s := range w.subs {
		if s.id == id {
			w.subs = append(w.subs[:i:i], w.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Shift は原点を移動し、登録順に全ハンドラを呼び出す
func (w *WorldMover) Shift(shift mgl64.Vec3) OriginShiftEvent {
	ev := OriginShiftEvent{Shift: shift, Time: w.now()}

	// コピーしてロックを解放した状態でハンドラを呼び出す
	w.mutex.Lock()
	w.offset = w.offset.Add(shift)
	subs := append([]subscription(nil), w.subs...)
	w.mutex.Unlock()

	for _, s := range subs {
		s.handler(ev)
	}
	return ev
}

// Offset はこれまでの原点移動量の合計を返す
func (w *WorldMover) Offset() mgl64.Vec3 {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.offset
}

// Subscribers は現在の購読者数を返す
func (w *WorldMover) Subscribers() int {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return len(w.subs)
}
