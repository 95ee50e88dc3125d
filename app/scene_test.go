package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diesel.com/gridsph/config"
	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
)

func init() {
	SetOutput(io.Discard)
	F.SetOutput(io.Discard)
	D.SetOutput(io.Discard)
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func runText(count int) string {
	return fmt.Sprintf(`[Box]
Width = 12
Height = 4
Depth = 8

[Particles]
Count = %d

[Device]
Workers = 2

[Run]
StatsEvery = 0
`, count)
}

func newScene(t *testing.T, count int) *Scene {
	run, err := config.ReadString(runText(count))
	require.NoError(t, err)
	sc, err := NewScene(run)
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close(context.Background()) })
	return sc
}

func TestSceneRunFrames(t *testing.T) {
	ctx := testContext(t)
	sc := newScene(t, 400)
	sc.run.Run.StatsEvery = 5

	st, err := sc.RunFrames(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), sc.Sim.Frame())
	assert.Equal(t, 400, st.Particles)
	assert.Zero(t, st.NonFinite)
	assert.Zero(t, st.Escaped)
	assert.False(t, sc.Anim.LastStats.Before(sc.Anim.AppStart))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sc.RunFrames(cancelled, 1)
	assert.True(t, errors.Is(err, context.Canceled), "%v", err)
}

func TestSceneApplyKeepsRunOnFailure(t *testing.T) {
	ctx := testContext(t)
	sc := newScene(t, 300)
	before := sc.RunFile()

	bad := before
	bad.Particles.Count = -1
	err := sc.Apply(ctx, &bad)
	assert.True(t, errors.Is(err, F.ErrInvalidConfig), "%v", err)
	assert.Equal(t, before, sc.RunFile())
	assert.Equal(t, 300, sc.Sim.Config().Count)

	//[Device] changes are accepted but only logged
	moved := before
	moved.Device.Workers = 1
	require.NoError(t, sc.Apply(ctx, &moved))
	assert.Equal(t, 2, sc.Dev.Workers())
}

func TestSceneResize(t *testing.T) {
	ctx := testContext(t)
	sc := newScene(t, 300)
	v0 := sc.Sim.Settings().Version

	require.NoError(t, sc.Resize(ctx, 20, 0, 350))
	cfg := sc.Sim.Config()
	assert.Equal(t, 350, cfg.Count)
	assert.Equal(t, F.Box{Width: 20, Height: 4, Depth: 8}, cfg.Box)
	assert.Equal(t, 350, sc.RunFile().Particles.Count)
	assert.Greater(t, sc.Sim.Settings().Version, v0)

	assert.Error(t, sc.Resize(ctx, -3, 0, 0))
	assert.Equal(t, float32(20), sc.Sim.Config().Box.Width)
}

//replace swaps the file in by rename, as most editors do
func replace(t *testing.T, path, text string) {
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(text), 0644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestSceneWatch(t *testing.T) {
	ctx := testContext(t)
	path := filepath.Join(t.TempDir(), "run.cfg")
	require.NoError(t, os.WriteFile(path, []byte(runText(300)), 0644))

	run, err := config.ReadFile(path)
	require.NoError(t, err)
	sc, err := NewScene(run)
	require.NoError(t, err)
	defer sc.Close(context.Background())

	watcher, err := watchFile(path)
	require.NoError(t, err)
	defer watcher.Close()
	go sc.follow(ctx, watcher, path)

	replace(t, path, runText(250))
	require.Eventually(t, func() bool {
		return sc.Sim.Config().Count == 250
	}, 10*time.Second, 20*time.Millisecond)

	replace(t, path, "[Particles]\nCount = -1\n")
	assert.Never(t, func() bool {
		return sc.Sim.Config().Count != 250
	}, 300*time.Millisecond, 20*time.Millisecond)

	_, err = watchFile(filepath.Join(t.TempDir(), "missing", "run.cfg"))
	assert.Error(t, err)
}
