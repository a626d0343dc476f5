package features

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// smoothTimeの下限。0で割らないようにする
const minSmoothTime = 1e-4

// SmoothDamp は臨界減衰ばねでcurrentをtargetへ近づける
// velocityは呼び出し間で保持される速度で、この関数が更新する
// maxSpeedにmath.Inf(1)を渡すと速度制限なしになる
func SmoothDamp(current, target float64, velocity *float64, smoothTime, maxSpeed, deltaTime float64) float64 {
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	exp := dampFactor(omega * deltaTime)

	originalTo := target
	change := current - target

	// 最大速度による変化量の制限
	maxChange := maxSpeed * smoothTime
	change = math.Max(-maxChange, math.Min(maxChange, change))
	target = current - change

	temp := (*velocity + omega*change) * deltaTime
	*velocity = (*velocity - omega*temp) * exp
	output := target + (change+temp)*exp

	// 目標を追い越さない
	if (originalTo-current > 0) == (output > originalTo) {
		output = originalTo
		*velocity = 0
	}
	return output
}

// SmoothDampVec3 はSmoothDampの3次元版
// 3成分をまとめて扱い、追い越し判定は内積で行う
func SmoothDampVec3(current, target mgl64.Vec3, velocity *mgl64.Vec3, smoothTime, maxSpeed, deltaTime float64) mgl64.Vec3 {
	smoothTime = math.Max(minSmoothTime, smoothTime)
	omega := 2 / smoothTime
	exp := dampFactor(omega * deltaTime)

	originalTo := target
	change := current.Sub(target)

	maxChange := maxSpeed * smoothTime
	if l := change.Len(); l > maxChange {
		change = change.Mul(maxChange / l)
	}
	target = current.Sub(change)

	temp := velocity.Add(change.Mul(omega)).Mul(deltaTime)
	*velocity = velocity.Sub(temp.Mul(omega)).Mul(exp)
	output := target.Add(change.Add(temp).Mul(exp))

	if originalTo.Sub(current).Dot(output.Sub(originalTo)) > 0 {
		output = originalTo
		*velocity = mgl64.Vec3{}
	}
	return output
}

// SmoothDampAngle は角度（度）版のSmoothDamp
// 360度の境界をまたぐ場合も最短経路で補間する
func SmoothDampAngle(current, target float64, velocity *float64, smoothTime, maxSpeed, deltaTime float64) float64 {
	target = current + DeltaAngle(current, target)
	return SmoothDamp(current, target, velocity, smoothTime, maxSpeed, deltaTime)
}

// DeltaAngle はcurrentからtargetへの最短の符号付き角度差を(-180, 180]で返す
func DeltaAngle(current, target float64) float64 {
	delta := Repeat(target-current, 360)
	if delta > 180 {
		delta -= 360
	}
	return delta
}

// Repeat はtを[0, length)の範囲に折り返す
func Repeat(t, length float64) float64 {
	r := t - math.Floor(t/length)*length
	if r >= length {
		r = 0
	}
	return r
}

// 指数減衰 exp(-x) の多項式近似
func dampFactor(x float64) float64 {
	return 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)
}
