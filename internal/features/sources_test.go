package features

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/smoothcam/internal/event"
	"github.com/char5742/smoothcam/internal/types"
)

func TestSimulatedHeadset_PoseAndShift(t *testing.T) {
	clock := NewManualClock(time.Time{})
	h := NewSimulatedHeadset(clock, mgl64.Vec3{10, 0, 0}, 0, 0)

	pose := h.TrackedPose()
	require.NotNil(t, pose)
	assert.InDelta(t, 10.0, pose.Position.X(), 1e-12)
	assert.InDelta(t, 1.7, pose.Position.Y(), 1e-12)
	assert.True(t, pose.IsFinite())

	h.OnOriginShift(event.OriginShiftEvent{Shift: mgl64.Vec3{4, 0, 0}})
	pose = h.TrackedPose()
	assert.InDelta(t, 6.0, pose.Position.X(), 1e-12)
}

func TestSimulatedHeadset_Inactive(t *testing.T) {
	h := NewSimulatedHeadset(NewManualClock(time.Time{}), mgl64.Vec3{}, 0.01, 5)

	h.SetActive(false)
	assert.Nil(t, h.TrackedPose())

	h.SetActive(true)
	assert.NotNil(t, h.TrackedPose())
}

func TestSimulatedHeadset_RotationInRange(t *testing.T) {
	clock := NewManualClock(time.Time{})
	h := NewSimulatedHeadset(clock, mgl64.Vec3{}, 0.01, 30)

	for i := 0; i < 200; i++ {
		clock.Advance(50 * time.Millisecond)
		pose := h.TrackedPose()
		for axis := 0; axis < 3; axis++ {
			assert.GreaterOrEqual(t, pose.Rotation[axis], 0.0)
			assert.Less(t, pose.Rotation[axis], 360.0)
		}
	}
}

func TestFixedZoom(t *testing.T) {
	assert.Equal(t, 1.0, FixedZoom(0).FovZoomFactor())
	assert.Equal(t, 2.5, FixedZoom(2.5).FovZoomFactor())
}

func TestRecordingSink(t *testing.T) {
	var sink RecordingSink
	sink.SetPose(types.Pose{FieldOfView: 60})
	sink.SetPose(types.Pose{FieldOfView: 70})

	pose, frames := sink.Last()
	assert.Equal(t, 70.0, pose.FieldOfView)
	assert.Equal(t, uint64(2), frames)
}

func TestClocks(t *testing.T) {
	var mono MonotonicClock
	a := mono.Now()
	b := mono.Now()
	assert.False(t, b.Before(a))

	assert.IsType(t, WallClock{}, NewClock("wall"))
	assert.IsType(t, MonotonicClock{}, NewClock("monotonic"))
	assert.IsType(t, MonotonicClock{}, NewClock(""))

	manual := NewManualClock(time.Time{})
	start := manual.Now()
	manual.Advance(-time.Second)
	assert.Equal(t, -time.Second, manual.Now().Sub(start))
}
