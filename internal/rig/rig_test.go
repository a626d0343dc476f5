package rig

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/char5742/smoothcam/internal/config"
	"github.com/char5742/smoothcam/internal/features"
)

func newTestHost(loadFrames int) (*SimHost, *features.ManualClock) {
	clock := features.NewManualClock(time.Time{})
	sim := config.SimulationConfig{Jitter: 0, Sway: 0, ZoomLevel: 1}
	return NewSimHost(clock, sim, loadFrames), clock
}

func TestRig_SetupAndTeardown(t *testing.T) {
	host, _ := newTestHost(0)
	r := NewRig(host)

	require.NoError(t, r.Setup())

	cam := r.Camera()
	require.NotNil(t, cam)
	assert.Equal(t, CameraName, cam.Name)
	assert.Equal(t, 20.0, cam.Depth)
	assert.Equal(t, 1, host.CullingRecorder().Cameras())
	assert.Equal(t, RenderModeNone, host.RenderMode())
	// ヘッドセットとアダプターの2つ
	assert.Equal(t, 2, host.WorldMover().Subscribers())

	require.NoError(t, r.Teardown())
	assert.Nil(t, r.Camera())
	assert.Equal(t, 0, host.CullingRecorder().Cameras())
	assert.Equal(t, RenderModeBothEyes, host.RenderMode())
	assert.Equal(t, 1, host.WorldMover().Subscribers())
}

func TestRig_VRDisabled(t *testing.T) {
	host, _ := newTestHost(0)
	host.SetVREnabled(false)
	r := NewRig(host)

	assert.ErrorIs(t, r.Setup(), ErrVRDisabled)
	assert.Nil(t, r.Camera())
}

func TestRig_SetupTwice(t *testing.T) {
	host, _ := newTestHost(0)
	r := NewRig(host)

	require.NoError(t, r.Setup())
	assert.ErrorIs(t, r.Setup(), ErrAlreadySetUp)
	assert.Equal(t, 1, host.CullingRecorder().Cameras())
}

func TestRig_TeardownWithoutSetup(t *testing.T) {
	host, _ := newTestHost(0)
	assert.ErrorIs(t, NewRig(host).Teardown(), ErrNotSetUp)
}

func TestRig_DelayedSetup(t *testing.T) {
	host, clock := newTestHost(3)
	r := NewRig(host)

	require.NoError(t, r.Setup())
	assert.True(t, r.Pending())
	assert.Nil(t, r.Camera())
	assert.ErrorIs(t, r.Setup(), ErrAlreadySetUp)

	for i := 0; i < 2; i++ {
		host.Tick(clock.Now())
		assert.Nil(t, r.Camera(), "frame %d", i)
	}

	host.Tick(clock.Now())
	assert.False(t, r.Pending())
	require.NotNil(t, r.Camera())
	assert.Equal(t, RenderModeNone, host.RenderMode())
}

func TestRig_TeardownWhilePending(t *testing.T) {
	host, clock := newTestHost(1)
	r := NewRig(host)

	require.NoError(t, r.Setup())
	require.NoError(t, r.Teardown())

	host.Tick(clock.Now())
	assert.Nil(t, r.Camera(), "cancelled setup must not create a camera")
	assert.Equal(t, 0, host.CullingRecorder().Cameras())
}

func TestRig_OriginShiftRebasesFilter(t *testing.T) {
	host, clock := newTestHost(0)
	r := NewRig(host)
	require.NoError(t, r.Setup())
	defer r.Teardown()

	cam := r.Camera()
	cfg := config.DefaultConfig().Smoothing
	target := cam.Tracked().TrackedPose()
	require.NotNil(t, target)
	cam.Filter().Tick(target, cfg, 1, clock.Now())

	before := cam.Filter().State().Position
	host.WorldMover().Shift(mgl64.Vec3{100, 0, 0})

	assert.Equal(t, before.Sub(mgl64.Vec3{100, 0, 0}), cam.Filter().State().Position)

	// ヘッドセットも一緒に移動しているので、次のフレームで跳ねない
	clock.Advance(11 * time.Millisecond)
	pose, ok := cam.Filter().Tick(cam.Tracked().TrackedPose(), cfg, 1, clock.Now())
	require.True(t, ok)
	assert.InDelta(t, before.X()-100, pose.Position.X(), 1e-3)
}

func TestRenderModeString(t *testing.T) {
	assert.Equal(t, "None", RenderModeNone.String())
	assert.Equal(t, "BothEyes", RenderModeBothEyes.String())
	assert.Equal(t, "Unknown", RenderMode(42).String())
}
