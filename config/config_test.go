// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, s string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "modelguy.toml")
	require.NoError(t, os.WriteFile(name, []byte(s), 0644))
	return name
}

func TestLoad(t *testing.T) {
	name := writeConfig(t, `
basedir = "/games/valve"
search = ["/extra"]

[pose]
controllers = [0, 255]
mouth = 32
blenders = [300]
gait_sequence = 2
gait_frame = 0.75
`)
	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, "/games/valve", c.BaseDir)
	assert.Equal(t, []string{"/extra"}, c.Search)

	r := c.Request(1, 0.5)
	assert.Equal(t, 1, r.Sequence)
	assert.Equal(t, float32(0.5), r.Frame)
	assert.Equal(t, [4]uint8{0, 255, 127, 127}, r.Controllers)
	assert.Equal(t, [2]uint8{255, 0}, r.Blenders)
	assert.Equal(t, uint8(32), r.Mouth)
	require.NotNil(t, r.Gait)
	assert.Equal(t, 2, r.Gait.Sequence)
	assert.Equal(t, float32(0.75), r.Gait.Frame)
	assert.Len(t, c.SolverOptions(), 1)
}

func TestDefaults(t *testing.T) {
	c := Default()
	r := c.Request(0, 0)
	assert.Nil(t, r.Gait)
	assert.Equal(t, [4]uint8{127, 127, 127, 127}, r.Controllers)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err, "an explicit file must exist")

	_, err = Load(writeConfig(t, "colour = 3\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(writeConfig(t, "[pose]\ncontrollers = [1, 2, 3, 4, 5]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "basedir = \n"))
	assert.Error(t, err)
}

func TestHomeExpansion(t *testing.T) {
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())
	name := writeConfig(t, `search = ["~/models"]`)
	c, err := Load(name)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), "models"), c.Search[0])
}
