// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"modelguy/conlog"
	"modelguy/mstream"
)

// InsertAt splices data in at offset and shifts every offset field pointing
// at or after offset. On error the model is left unchanged.
func (m *Model) InsertAt(offset int, data []byte) error {
	if err := m.checkSplice(offset, 0); err != nil {
		return err
	}
	alignCheck(offset, len(data))
	s := mstream.New(append([]byte(nil), m.s.Bytes()...))
	if _, err := s.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	s.Insert(data)
	if err := relocate(s, offset, len(data)); err != nil {
		return err
	}
	m.s = s
	return nil
}

// RemoveAt cuts n bytes at offset and shifts every offset field pointing
// after the removed range back. It is the inverse of InsertAt.
func (m *Model) RemoveAt(offset, n int) error {
	if err := m.checkSplice(offset, n); err != nil {
		return err
	}
	alignCheck(offset, n)
	s := mstream.New(append([]byte(nil), m.s.Bytes()...))
	if _, err := s.Seek(int64(offset), io.SeekStart); err != nil {
		return err
	}
	if err := s.Remove(n); err != nil {
		return err
	}
	if err := relocate(s, offset, -n); err != nil {
		return err
	}
	m.s = s
	return nil
}

// Relocate adds delta to every offset field whose value is at least after
// and sets the header length to the buffer size. On error the model is left
// unchanged.
func (m *Model) Relocate(after, delta int) error {
	s := mstream.New(append([]byte(nil), m.s.Bytes()...))
	if err := relocate(s, after, delta); err != nil {
		return err
	}
	m.s = s
	return nil
}

func (m *Model) checkSplice(offset, n int) error {
	if offset < HeaderSize {
		return errors.Wrapf(ErrOutOfBounds, "splice at %d inside the header", offset)
	}
	if n < 0 || offset+n > m.s.Len() {
		return errors.Wrapf(ErrOutOfBounds, "splice of %d bytes at %d (size %d)", n, offset, m.s.Len())
	}
	return nil
}

func alignCheck(offset, n int) {
	if offset%4 != 0 || n%4 != 0 {
		conlog.Warnf("splice of %d bytes at %d is not 4 byte aligned\n", n, offset)
	}
}

func writeAt(s *mstream.Stream, off int64, v interface{}) error {
	if _, err := s.Seek(off, io.SeekStart); err != nil {
		return err
	}
	return binary.Write(s, binary.LittleEndian, v)
}

// relocator shifts offset fields of the structures in s. Every field is
// fixed first, then followed, since the buffer already has the new layout.
type relocator struct {
	s     *mstream.Stream
	after int32
	delta int32
}

func (r *relocator) fix(f *int32) {
	if *f >= r.after {
		*f += r.delta
	}
}

func relerr(where string, err error) error {
	return &ValidationError{Kind: kindOf(err), Where: where, Detail: err.Error()}
}

func relocate(s *mstream.Stream, after, delta int) error {
	r := &relocator{s: s, after: int32(after), delta: int32(delta)}
	h, err := header(s.Bytes())
	if err != nil {
		return relerr("header", err)
	}
	for _, f := range []*int32{
		&h.BoneIndex,
		&h.BoneControllerIndex,
		&h.HitboxIndex,
		&h.SeqIndex,
		&h.SeqGroupIndex,
		&h.TextureIndex,
		&h.TextureDataIndex,
		&h.SkinIndex,
		&h.BodyPartIndex,
		&h.AttachmentIndex,
		&h.SoundIndex,
		&h.SoundGroupIndex,
		&h.TransitionIndex,
	} {
		r.fix(f)
	}
	h.Length = int32(s.Len())
	if err := writeAt(s, 0, &h); err != nil {
		return relerr("header", err)
	}
	if err := r.sequences(&h); err != nil {
		return err
	}
	if err := r.bodyParts(&h); err != nil {
		return err
	}
	return r.textures(&h)
}

func (r *relocator) sequences(h *Header) error {
	for i := 0; i < int(h.NumSeq); i++ {
		where := fmt.Sprintf("sequence %d", i)
		sd, err := element[SeqDesc](r.s.Bytes(), "sequence", i, h.NumSeq, h.SeqIndex)
		if err != nil {
			return relerr(where, err)
		}
		r.fix(&sd.EventIndex)
		r.fix(&sd.PivotIndex)
		if sd.SeqGroup == 0 {
			// external groups index into their own file
			r.fix(&sd.AnimIndex)
		}
		if err := writeAt(r.s, int64(h.SeqIndex)+int64(i)*SeqDescSize, &sd); err != nil {
			return relerr(where, err)
		}
	}
	return nil
}

func (r *relocator) bodyParts(h *Header) error {
	for b := 0; b < int(h.NumBodyParts); b++ {
		where := fmt.Sprintf("body part %d", b)
		bp, err := element[BodyPart](r.s.Bytes(), "body part", b, h.NumBodyParts, h.BodyPartIndex)
		if err != nil {
			return relerr(where, err)
		}
		r.fix(&bp.ModelIndex)
		if err := writeAt(r.s, int64(h.BodyPartIndex)+int64(b)*BodyPartSize, &bp); err != nil {
			return relerr(where, err)
		}
		for i := 0; i < int(bp.NumModels); i++ {
			if err := r.subModel(fmt.Sprintf("%s model %d", where, i), &bp, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *relocator) subModel(where string, bp *BodyPart, i int) error {
	sm, err := element[SubModel](r.s.Bytes(), "model", i, bp.NumModels, bp.ModelIndex)
	if err != nil {
		return relerr(where, err)
	}
	r.fix(&sm.MeshIndex)
	r.fix(&sm.VertIndex)
	r.fix(&sm.VertInfoIndex)
	r.fix(&sm.NormIndex)
	r.fix(&sm.NormInfoIndex)
	if err := writeAt(r.s, int64(bp.ModelIndex)+int64(i)*SubModelSize, &sm); err != nil {
		return relerr(where, err)
	}
	for k := 0; k < int(sm.NumMesh); k++ {
		mw := fmt.Sprintf("%s mesh %d", where, k)
		me, err := element[Mesh](r.s.Bytes(), "mesh", k, sm.NumMesh, sm.MeshIndex)
		if err != nil {
			return relerr(mw, err)
		}
		r.fix(&me.NormIndex)
		r.fix(&me.TriIndex)
		if err := writeAt(r.s, int64(sm.MeshIndex)+int64(k)*MeshSize, &me); err != nil {
			return relerr(mw, err)
		}
	}
	return nil
}

func (r *relocator) textures(h *Header) error {
	for i := 0; i < int(h.NumTextures); i++ {
		where := fmt.Sprintf("texture %d", i)
		t, err := element[Texture](r.s.Bytes(), "texture", i, h.NumTextures, h.TextureIndex)
		if err != nil {
			return relerr(where, err)
		}
		r.fix(&t.Index)
		if err := writeAt(r.s, int64(h.TextureIndex)+int64(i)*TextureSize, &t); err != nil {
			return relerr(where, err)
		}
	}
	return nil
}
