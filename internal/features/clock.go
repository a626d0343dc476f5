package features

import (
	"time"

	"golang.org/x/sys/unix"
)

// Clock はフレームの時刻を取得するインターフェース
type Clock interface {
	Now() time.Time
}

// MonotonicClock はCLOCK_MONOTONICを読む時計
// システム時刻の変更に影響されない
type MonotonicClock struct{}

func (MonotonicClock) Now() time.Time {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Now()
	}
	return time.Unix(ts.Unix())
}

// WallClock はシステム時刻を読む時計
// 時刻合わせなどで巻き戻ることがある
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now().Round(0)
}

// NewClock は設定名に対応する時計を返す
func NewClock(name string) Clock {
	if name == "wall" {
		return WallClock{}
	}
	return MonotonicClock{}
}

// ManualClock は手動で進める時計。テストやリプレイ用
type ManualClock struct {
	current time.Time
}

// NewManualClock はtで始まるManualClockを作成する
func NewManualClock(t time.Time) *ManualClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &ManualClock{current: t}
}

func (m *ManualClock) Now() time.Time {
	return m.current
}

// Advance は時計をdだけ進める。負の値を渡すと巻き戻る
func (m *ManualClock) Advance(d time.Duration) {
	m.current = m.current.Add(d)
}

// Set は時刻を設定する
func (m *ManualClock) Set(t time.Time) {
	m.current = t
}
