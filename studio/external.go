// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"modelguy/conlog"
	"modelguy/mstream"
)

func splitName(name string) (string, string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		return "", "", errors.Wrapf(ErrUnsupportedExternalData, "%s has no extension", name)
	}
	return strings.TrimSuffix(name, ext), ext, nil
}

// TextureFileName returns the companion texture file of name: the base
// name with a "t" suffix, or "T" if only that one exists.
func TextureFileName(st Storage, name string) (string, error) {
	base, ext, err := splitName(name)
	if err != nil {
		return "", err
	}
	for _, suffix := range []string{"t", "T"} {
		n := base + suffix + ext
		if st.Exists(n) {
			return n, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedExternalData, "external texture model not found: %s", base+"t"+ext)
}

// SequenceGroupFileName returns the companion file of sequence group i.
func SequenceGroupFileName(name string, i int) (string, error) {
	base, ext, err := splitName(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%02d%s", base, i, ext), nil
}

func (m *Model) clone() *Model {
	return &Model{
		name:   m.name,
		s:      mstream.New(append([]byte(nil), m.s.Bytes()...)),
		groups: m.groups,
		tex:    m.tex,
	}
}

// LoadSequenceGroups reads the numbered companion files holding the
// animation of external sequence groups. The model stays usable if this
// fails, only the external sequences cannot be evaluated.
func (m *Model) LoadSequenceGroups(st Storage) error {
	h := m.hdr()
	if h.NumSeqGroups <= 1 {
		return nil
	}
	groups := make([][]byte, h.NumSeqGroups)
	for i := 1; i < int(h.NumSeqGroups); i++ {
		name, err := SequenceGroupFileName(m.name, i)
		if err != nil {
			return err
		}
		if !st.Exists(name) {
			return errors.Wrapf(ErrUnsupportedExternalData, "external sequence model not found: %s", name)
		}
		data, err := st.ReadFile(name)
		if err != nil {
			return errors.Wrapf(ErrUnsupportedExternalData, "%s: %v", name, err)
		}
		var sh SeqHeader
		if err := readAt(data, 0, &sh); err != nil {
			return errors.Wrapf(ErrUnsupportedExternalData, "%s: %v", name, err)
		}
		if sh.ID != SeqMagic {
			return errors.Wrapf(ErrUnsupportedExternalData, "%s has wrong id 0x%08x", name, uint32(sh.ID))
		}
		if sh.Version != Version {
			conlog.Warnf("%s has wrong version number (%d should be %d)\n", name, sh.Version, Version)
		}
		conlog.DPrintf("sequence group %d from %s\n", i, name)
		groups[i] = data
	}
	old := m.groups
	m.groups = groups
	if err := m.Validate(); err != nil {
		m.groups = old
		return errors.Wrapf(ErrUnsupportedExternalData, "sequence groups: %v", err)
	}
	return nil
}

// LoadExternalTextures reads the companion texture model. Texture and skin
// accessors use it afterwards.
func (m *Model) LoadExternalTextures(st Storage) error {
	if !m.HasExternalTextures() {
		return nil
	}
	name, err := TextureFileName(st, m.name)
	if err != nil {
		return err
	}
	data, err := st.ReadFile(name)
	if err != nil {
		return errors.Wrapf(ErrUnsupportedExternalData, "%s: %v", name, err)
	}
	t := New(name, data)
	if err := t.Validate(); err != nil {
		return errors.Wrapf(ErrUnsupportedExternalData, "%s: %v", name, err)
	}
	conlog.DPrintf("textures from %s\n", name)
	m.tex = t
	return nil
}

func (m *Model) putHeader(h *Header) error {
	return writeAt(m.s, 0, h)
}

// appendAligned pads the model to 4 bytes and appends data. It returns the
// offset of data.
func (m *Model) appendAligned(data []byte) (int, error) {
	pad := (4 - m.Len()%4) % 4
	at := m.Len() + pad
	if err := m.InsertAt(m.Len(), append(make([]byte, pad), data...)); err != nil {
		return 0, err
	}
	return at, nil
}

// MergeExternalTextures appends the companion texture data to the model so
// it no longer depends on the texture file. On error the model is unchanged.
func (m *Model) MergeExternalTextures(st Storage) error {
	if !m.HasExternalTextures() {
		conlog.DPrintf("%s: no external textures to merge\n", m.name)
		return nil
	}
	t := m.tex
	if t == nil {
		if err := m.LoadExternalTextures(st); err != nil {
			return err
		}
		t, m.tex = m.tex, nil
	}
	th := t.hdr()
	src := int64(th.TextureIndex)
	fail := func(format string, v ...interface{}) error {
		return errors.Wrapf(ErrUnsupportedExternalData, "%s: %s", t.name, fmt.Sprintf(format, v...))
	}
	if (th.NumTextures > 0 && src < HeaderSize) || src > int64(t.Len()) {
		return fail("texture index %d", src)
	}
	if int64(th.SkinIndex) < src || int64(th.TextureDataIndex) < src {
		return fail("skin index %d or texture data %d before the texture table %d", th.SkinIndex, th.TextureDataIndex, src)
	}

	n := m.clone()
	n.tex = nil
	at, err := n.appendAligned(t.Bytes()[src:])
	if err != nil {
		return err
	}
	rebase := func(off int32) int32 {
		return int32(int64(at) + int64(off) - src)
	}
	h := n.hdr()
	h.NumTextures = th.NumTextures
	h.NumSkinRef = th.NumSkinRef
	h.NumSkinFamilies = th.NumSkinFamilies
	h.TextureIndex = int32(at)
	h.SkinIndex = rebase(th.SkinIndex)
	h.TextureDataIndex = rebase(th.TextureDataIndex)
	if err := n.putHeader(&h); err != nil {
		return err
	}
	for _, f := range []struct {
		what string
		off  int32
	}{
		{"texture data index", h.TextureDataIndex},
		{"texture index", h.TextureIndex},
		{"skin index", h.SkinIndex},
	} {
		if f.off%4 != 0 {
			conlog.Warnf("%s %d is not 4 byte aligned\n", f.what, f.off)
		}
	}
	for i := 0; i < int(h.NumTextures); i++ {
		tex, err := element[Texture](n.s.Bytes(), "texture", i, h.NumTextures, h.TextureIndex)
		if err != nil {
			return err
		}
		if int64(tex.Index) < src {
			return fail("texture %d data at %d before the texture table", i, tex.Index)
		}
		tex.Index = rebase(tex.Index)
		if err := writeAt(n.s, int64(h.TextureIndex)+int64(i)*TextureSize, &tex); err != nil {
			return err
		}
	}
	if err := n.Validate(); err != nil {
		return errors.Wrapf(err, "merged textures of %s", t.name)
	}
	*m = *n
	return nil
}

// MergeSequenceGroups appends the animation of every external sequence
// group to the model and points the sequences at it. Afterwards the model
// has a single sequence group. On error the model is unchanged.
func (m *Model) MergeSequenceGroups(st Storage) error {
	if !m.HasExternalSequences() {
		conlog.DPrintf("%s: no external sequences to merge\n", m.name)
		return nil
	}
	if m.groups == nil {
		if err := m.LoadSequenceGroups(st); err != nil {
			return err
		}
	}
	n := m.clone()
	h := n.hdr()
	g0, err := n.SequenceGroup(0)
	if err != nil {
		return err
	}
	for g := 1; g < int(h.NumSeqGroups); g++ {
		file := m.groups[g]
		grp, err := n.SequenceGroup(g)
		if err != nil {
			return err
		}
		at, err := n.appendAligned(file[SeqHeaderSize:])
		if err != nil {
			return err
		}
		for i := 0; i < n.NumSequences(); i++ {
			sd, err := n.Sequence(i)
			if err != nil {
				return err
			}
			if int(sd.SeqGroup) != g {
				continue
			}
			src := int64(grp.Data) + int64(sd.AnimIndex)
			if src < SeqHeaderSize {
				return errors.Wrapf(ErrUnsupportedExternalData, "sequence %d anim index %d inside the group header", i, src)
			}
			sd.AnimIndex = int32(int64(at) + src - SeqHeaderSize - int64(g0.Data))
			sd.SeqGroup = 0
			hh := n.hdr()
			if err := writeAt(n.s, int64(hh.SeqIndex)+int64(i)*SeqDescSize, &sd); err != nil {
				return err
			}
		}
		conlog.DPrintf("merged sequence group %d at %d\n", g, at)
	}
	h = n.hdr()
	h.NumSeqGroups = 1
	if err := n.putHeader(&h); err != nil {
		return err
	}
	n.groups = nil
	if err := n.Validate(); err != nil {
		return errors.Wrap(err, "merged sequence groups")
	}
	*m = *n
	return nil
}

// MergeExternal merges companion textures and sequence groups.
func (m *Model) MergeExternal(st Storage) error {
	if err := m.MergeExternalTextures(st); err != nil {
		return err
	}
	return m.MergeSequenceGroups(st)
}
