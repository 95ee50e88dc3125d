package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diesel.com/gridsph/app"
	"diesel.com/gridsph/config"
	F "diesel.com/gridsph/fluid"
)

func init() {
	app.SetOutput(io.Discard)
	F.SetOutput(io.Discard)
}

func TestExampleConfig(t *testing.T) {
	var out bytes.Buffer
	cmd := exampleCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, config.ExampleFile+"\n", out.String())
}

func TestStartProfile(t *testing.T) {
	assert.NoError(t, startProfile(""))
	assert.Error(t, startProfile("gpu"))
}

func TestRunCommand(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "run.cfg")
	text := "[Box]\nWidth = 8\nHeight = 4\nDepth = 8\n[Particles]\nCount = 200\n[Run]\nStatsEvery = 0\n"
	require.NoError(t, os.WriteFile(fname, []byte(text), 0644))
	configFile = fname
	defer func() { configFile = "" }()

	var out bytes.Buffer
	cmd := runCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--frames", "5"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "frame 5:")
	assert.Contains(t, lines[1], "escaped 0")
}
