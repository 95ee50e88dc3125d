package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	F "diesel.com/gridsph/fluid"
)

func TestExampleFile(t *testing.T) {
	w, err := ReadString(ExampleFile)
	require.NoError(t, err)
	assert.Equal(t, DefaultWrapper(), w, "the example documents the defaults")

	cfg, err := w.Fluid()
	require.NoError(t, err)
	assert.Equal(t, F.DefaultConfig(), cfg)
}

func TestReadFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "run.cfg")
	text := `[Box]
Width = 16
Depth = 24

[Particles]
Count = 1200
Seeding = lattice

[Sph]
Mu = 0.3

[Device]
Workers = 3
MaxMiB = 64

[Run]
Swap = copy
`
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))

	w, err := ReadFile(fname)
	require.NoError(t, err)
	assert.Equal(t, 16.0, w.Box.Width)
	assert.Equal(t, 4.0, w.Box.Height, "unset keys keep defaults")

	cfg, err := w.Fluid()
	require.NoError(t, err)
	assert.Equal(t, F.Box{Width: 16, Height: 4, Depth: 24}, cfg.Box)
	assert.Equal(t, 1200, cfg.Count)
	assert.Equal(t, F.SeedLattice, cfg.Seeding)
	assert.Equal(t, F.SwapCopy, cfg.Swap)
	assert.Equal(t, 0.3, cfg.Options.Mu)
	assert.Equal(t, F.DefaultOptions().TargetNeighbors, cfg.Options.TargetNeighbors)

	opts := w.DeviceOptions()
	assert.Equal(t, 3, opts.Workers)
	assert.Equal(t, int64(64<<20), opts.MaxBytes)
	assert.Equal(t, 16, opts.Depth)
}

func TestValidate(t *testing.T) {
	bad := map[string]string{
		"zero width":    "[Box]\nWidth = 0",
		"no particles":  "[Particles]\nCount = -4",
		"bad seeding":   "[Particles]\nSeeding = hex",
		"bad swap":      "[Run]\nSwap = triple",
		"bad rate":      "[Server]\nFrameRate = 0",
		"negative mu":   "[Sph]\nMu = -1",
		"bad workers":   "[Device]\nWorkers = -2",
		"bad stats":     "[Run]\nStatsEvery = -1",
		"no queue":      "[Device]\nQueueDepth = 0",
		"negative mem":  "[Device]\nMaxMiB = -1",
		"empty address": "[Server]\nAddr = \"\"",
	}
	for name, text := range bad {
		_, err := ReadString(text)
		assert.True(t, errors.Is(err, F.ErrInvalidConfig), "%s: %v", name, err)
	}

	_, err := ReadString("[Nope]\nX = 1")
	assert.Error(t, err)
	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.Error(t, err)
}
