package features

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// JudderReport は生の姿勢と平滑化後の姿勢のガタつきを比較した結果
// ガタつきはフレーム間の位置の2階差分の大きさで測る
type JudderReport struct {
	Samples        int     `json:"samples"`
	RawMean        float64 `json:"raw_mean"`
	RawStdDev      float64 `json:"raw_stddev"`
	RawMax         float64 `json:"raw_max"`
	SmoothedMean   float64 `json:"smoothed_mean"`
	SmoothedStdDev float64 `json:"smoothed_stddev"`
	SmoothedMax    float64 `json:"smoothed_max"`
	Reduction      float64 `json:"reduction"` // 1 - smoothed_mean/raw_mean
}

type judderTrack struct {
	prev    [2]mgl64.Vec3
	count   int
	samples []float64
}

func (t *judderTrack) add(p mgl64.Vec3, window int) {
	if t.count >= 2 {
		// p - 2*prev1 + prev0
		accel := p.Sub(t.prev[1].Mul(2)).Add(t.prev[0])
		t.samples = append(t.samples, accel.Len())
		if len(t.samples) > window {
			t.samples = t.samples[len(t.samples)-window:]
		}
	}
	t.prev[0], t.prev[1] = t.prev[1], p
	t.count++
}

func (t *judderTrack) rebase(shift mgl64.Vec3) {
	t.prev[0] = t.prev[0].Sub(shift)
	t.prev[1] = t.prev[1].Sub(shift)
}

// JudderMeter はフレーム毎の位置を記録してガタつきを集計する
type JudderMeter struct {
	window   int
	raw      judderTrack
	smoothed judderTrack
	mutex    sync.Mutex
}

// NewJudderMeter は直近windowフレームを集計するJudderMeterを作成する
func NewJudderMeter(window int) *JudderMeter {
	if window < 1 {
		window = 1
	}
	return &JudderMeter{window: window}
}

// Add は1フレーム分の生の位置と平滑化後の位置を記録する
func (m *JudderMeter) Add(raw, smoothed mgl64.Vec3) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.raw.add(raw, m.window)
	m.smoothed.add(smoothed, m.window)
}

// Rebase は原点移動で差分が跳ねないよう記録済みの位置を動かす
func (m *JudderMeter) Rebase(shift mgl64.Vec3) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.raw.rebase(shift)
	m.smoothed.rebase(shift)
}

// Reset は記録を消去する
func (m *JudderMeter) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.raw = judderTrack{}
	m.smoothed = judderTrack{}
}

// Report は集計結果を返す
func (m *JudderMeter) Report() JudderReport {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	report := JudderReport{Samples: len(m.raw.samples)}
	if report.Samples == 0 {
		return report
	}

	report.RawMean, report.RawStdDev = meanStdDev(m.raw.samples)
	report.RawMax = floats.Max(m.raw.samples)
	report.SmoothedMean, report.SmoothedStdDev = meanStdDev(m.smoothed.samples)
	report.SmoothedMax = floats.Max(m.smoothed.samples)

	if report.RawMean > 0 {
		report.Reduction = 1 - report.SmoothedMean/report.RawMean
	}
	return report
}

// 1サンプルだと標準偏差がNaNになるので0にする
func meanStdDev(x []float64) (float64, float64) {
	mean, std := stat.MeanStdDev(x, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}
