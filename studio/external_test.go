// SPDX-License-Identifier: GPL-2.0-or-later

package studio_test

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelguy/internal/studiotest"
	"modelguy/studio"
)

func TestCompanionNames(t *testing.T) {
	st := studiotest.MemStorage{"models/bartT.mdl": nil}
	n, err := studio.TextureFileName(st, "models/bart.mdl")
	require.NoError(t, err)
	assert.Equal(t, "models/bartT.mdl", n)
	st["models/bartt.mdl"] = nil
	n, err = studio.TextureFileName(st, "models/bart.mdl")
	require.NoError(t, err)
	assert.Equal(t, "models/bartt.mdl", n)

	n, err = studio.SequenceGroupFileName("models/bart.mdl", 3)
	require.NoError(t, err)
	assert.Equal(t, "models/bart03.mdl", n)
	n, err = studio.SequenceGroupFileName("models/bart.mdl", 12)
	require.NoError(t, err)
	assert.Equal(t, "models/bart12.mdl", n)

	_, err = studio.SequenceGroupFileName("models/bart", 1)
	assert.True(t, errors.Is(err, studio.ErrUnsupportedExternalData))
}

func TestExternalTextures(t *testing.T) {
	src := studiotest.Simple("guy.mdl")
	want, err := studio.New("guy.mdl", src.Build()).TextureImage(0)
	require.NoError(t, err)

	primary, textures := src.TextureModel()
	st := studiotest.MemStorage{"guy.mdl": primary, "guyT.mdl": textures}
	m, err := studio.Load(st, "guy.mdl")
	require.NoError(t, err)
	assert.True(t, m.HasExternalTextures())
	assert.Equal(t, 0, m.NumTextures())

	require.NoError(t, m.LoadExternalTextures(st))
	assert.Equal(t, 1, m.NumTextures())
	got, err := m.TextureImage(0)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)

	require.NoError(t, m.MergeExternalTextures(st))
	assert.False(t, m.HasExternalTextures())
	h, err := m.Header()
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.NumTextures)
	assert.Equal(t, int32(0), h.TextureIndex%4)
	assert.Equal(t, int32(m.Len()), h.Length)
	got, err = m.TextureImage(0)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, got.Pix)
	ti, err := m.SkinTexture(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, ti)

	// the merged model stands on its own
	out := studiotest.MemStorage{}
	require.NoError(t, m.Save(out, "merged.mdl"))
	m2, err := studio.Load(out, "merged.mdl")
	require.NoError(t, err)
	assert.False(t, m2.HasExternalTextures())
}

func TestExternalTexturesMissing(t *testing.T) {
	primary, _ := studiotest.Simple("guy.mdl").TextureModel()
	st := studiotest.MemStorage{"guy.mdl": primary}
	m, err := studio.Load(st, "guy.mdl")
	require.NoError(t, err)
	err = m.MergeExternalTextures(st)
	assert.True(t, errors.Is(err, studio.ErrUnsupportedExternalData), "got %v", err)
	assert.True(t, bytes.Equal(primary, m.Bytes()))
	// the base model stays usable
	assert.NoError(t, m.Validate())
	_, err = m.MeshTriangles(0, 0, 0)
	assert.NoError(t, err)
}

func groupModel() *studiotest.Model {
	m := studiotest.Simple("grp.mdl")
	m.SeqGroups = 3
	m.Sequences = append(m.Sequences,
		studiotest.Sequence{
			Label:     "walk",
			NumFrames: 3,
			SeqGroup:  1,
			Curves: [][][studio.NumChannels][]int16{{
				{studiotest.Span(3, 1, 2, 3)},
				{nil, studiotest.Span(3, 7)},
			}},
		},
		studiotest.Sequence{
			Label:     "run",
			NumFrames: 2,
			SeqGroup:  2,
			Curves: [][][studio.NumChannels][]int16{{
				{},
				{nil, nil, studiotest.Span(2, 4, 5)},
			}},
		},
	)
	return m
}

func TestSequenceGroups(t *testing.T) {
	src := groupModel()
	st := studiotest.MemStorage{
		"grp.mdl":   src.Build(),
		"grp01.mdl": src.GroupFile(1),
		"grp02.mdl": src.GroupFile(2),
	}
	m, err := studio.Load(st, "grp.mdl")
	require.NoError(t, err)
	assert.True(t, m.HasExternalSequences())

	_, err = m.AnimCurves(1, 0)
	assert.True(t, errors.Is(err, studio.ErrUnsupportedExternalData), "got %v", err)
	// group 0 sequences work without the companion files
	_, err = m.AnimCurves(0, 0)
	assert.NoError(t, err)

	require.NoError(t, m.LoadSequenceGroups(st))
	walk, err := m.AnimCurves(1, 0)
	require.NoError(t, err)
	assert.Equal(t, studio.Curve(studiotest.Span(3, 1, 2, 3)), walk[0][0])
	assert.Equal(t, studio.Curve(studiotest.Span(3, 7)), walk[1][1])
	run, err := m.AnimCurves(2, 0)
	require.NoError(t, err)

	require.NoError(t, m.MergeSequenceGroups(st))
	assert.False(t, m.HasExternalSequences())
	assert.Equal(t, 1, m.NumSequenceGroups())
	require.NoError(t, m.Validate())
	for i, want := range map[int][]studio.Channels{1: walk, 2: run} {
		sd, err := m.Sequence(i)
		require.NoError(t, err)
		assert.Equal(t, int32(0), sd.SeqGroup)
		got, err := m.AnimCurves(i, 0)
		require.NoError(t, err)
		assert.Equal(t, want, got, "sequence %d", i)
	}
}

func TestSequenceGroupsMissing(t *testing.T) {
	src := groupModel()
	st := studiotest.MemStorage{
		"grp.mdl":   src.Build(),
		"grp01.mdl": src.GroupFile(1),
	}
	m, err := studio.Load(st, "grp.mdl")
	require.NoError(t, err)
	before := append([]byte(nil), m.Bytes()...)
	err = m.MergeExternal(st)
	assert.True(t, errors.Is(err, studio.ErrUnsupportedExternalData), "got %v", err)
	assert.Equal(t, before, m.Bytes())
	_, err = m.AnimCurves(0, 0)
	assert.NoError(t, err)
}

func TestSequenceGroupBadMagic(t *testing.T) {
	src := groupModel()
	bad := src.GroupFile(2)
	bad[0] = 'X'
	st := studiotest.MemStorage{
		"grp.mdl":   src.Build(),
		"grp01.mdl": src.GroupFile(1),
		"grp02.mdl": bad,
	}
	m, err := studio.Load(st, "grp.mdl")
	require.NoError(t, err)
	err = m.LoadSequenceGroups(st)
	assert.True(t, errors.Is(err, studio.ErrUnsupportedExternalData), "got %v", err)
	_, err = m.AnimCurves(1, 0)
	assert.Error(t, err)
}

func TestSaveRefusesInvalid(t *testing.T) {
	data := patch(studiotest.Simple("bad.mdl").Build(), 4, 9)
	m := studio.New("bad.mdl", data)
	st := studiotest.MemStorage{}
	err := m.Save(st, "bad.mdl")
	assert.True(t, errors.Is(err, studio.ErrMalformedHeader), "got %v", err)
	assert.False(t, st.Exists("bad.mdl"))
}
