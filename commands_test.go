// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelguy/cmd"
	"modelguy/config"
	"modelguy/conlog"
	"modelguy/internal/studiotest"
	"modelguy/studio"
)

func capture(t *testing.T) *strings.Builder {
	var b strings.Builder
	conlog.SetPrintf(func(format string, v ...interface{}) {
		fmt.Fprintf(&b, format, v...)
	})
	t.Cleanup(func() { conlog.SetPrintf(log.Printf) })
	return &b
}

func splitTool() (*tool, studiotest.MemStorage) {
	primary, textures := studiotest.Simple("guy.mdl").TextureModel()
	st := studiotest.MemStorage{
		"guy.mdl":  primary,
		"guyt.mdl": textures,
	}
	return &tool{st: st, cfg: config.Default()}, st
}

func TestValidateCommand(t *testing.T) {
	tl, st := splitTool()
	out := capture(t)
	require.NoError(t, tl.validate(cmd.FromArgs([]string{"validate", "guy.mdl"})))
	assert.Contains(t, out.String(), "guy.mdl: ok")

	st["bad.mdl"] = []byte("IDSP")
	err := tl.validate(cmd.FromArgs([]string{"validate", "guy.mdl", "bad.mdl"}))
	assert.EqualError(t, err, "1 of 2 models invalid")

	delete(st, "guyt.mdl")
	assert.Error(t, tl.validate(cmd.FromArgs([]string{"validate", "guy.mdl"})))
}

func TestMergeCommand(t *testing.T) {
	tl, st := splitTool()
	capture(t)
	require.NoError(t, tl.merge(cmd.FromArgs([]string{"merge", "guy.mdl", "merged.mdl"})))
	m := studio.New("merged.mdl", st["merged.mdl"])
	require.NoError(t, m.Validate())
	assert.False(t, m.HasExternalTextures())
	assert.Equal(t, 1, m.NumTextures())
}

func TestTexturesCommand(t *testing.T) {
	tl, st := splitTool()
	capture(t)
	require.NoError(t, tl.textures(cmd.FromArgs([]string{"textures", "guy.mdl", ".tga"})))
	assert.Contains(t, st, "guy_skin.tga")
	require.NoError(t, tl.textures(cmd.FromArgs([]string{"textures", "guy.mdl", ".webp"})))
	assert.Contains(t, st, "guy_skin.webp")
	assert.Error(t, tl.textures(cmd.FromArgs([]string{"textures", "guy.mdl", ".pcx"})))
}

func TestPoseCommand(t *testing.T) {
	tl, _ := splitTool()
	out := capture(t)
	require.NoError(t, tl.pose(cmd.FromArgs([]string{"pose", "guy.mdl", "0", "1"})))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "root")
	assert.Contains(t, lines[0], "20.0000")
	assert.Contains(t, lines[1], "21.0000")

	assert.Error(t, tl.pose(cmd.FromArgs([]string{"pose", "guy.mdl", "idle"})))
}

func TestMeshCommand(t *testing.T) {
	tl, _ := splitTool()
	out := capture(t)
	require.NoError(t, tl.mesh(cmd.FromArgs([]string{"mesh", "guy.mdl"})))
	assert.Contains(t, out.String(), "usemtl skin.bmp")
	assert.Contains(t, out.String(), "f 1/1 2/2 3/3")
}

func TestInfoCommand(t *testing.T) {
	tl, _ := splitTool()
	out := capture(t)
	require.NoError(t, tl.info(cmd.FromArgs([]string{"info", "guy.mdl"})))
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out.String()), &v))
	assert.Equal(t, "guy.mdl", v["internal_name"])
	assert.Equal(t, true, v["external_textures"])
}

func TestTextureFileName(t *testing.T) {
	tests := []struct {
		model, tex, ext, want string
	}{
		{"models/guy.mdl", "skin.bmp", ".png", "guy_skin.png"},
		{`models\guy.mdl`, "chrome", ".bmp", "guy_chrome.bmp"},
	}
	for _, tc := range tests {
		if got := textureFileName(tc.model, tc.tex, tc.ext); got != tc.want {
			t.Errorf("textureFileName(%s, %s) got: %v, want %v", tc.model, tc.tex, got, tc.want)
		}
	}
}
