// SPDX-License-Identifier: GPL-2.0-or-later

// Package studio reads, validates and edits studio model (.mdl) blobs.
//
// A Model owns one flat buffer. Every substructure is decoded on demand from
// the absolute offsets stored in the header, each access is bounds checked
// against the current buffer.
package studio

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"modelguy/conlog"
	"modelguy/math/vec"
	"modelguy/mstream"
)

// Storage is the file access the model needs for loading, saving and
// resolving companion files.
type Storage interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Exists(name string) bool
}

type Model struct {
	name string
	s    *mstream.Stream
	// groups holds the raw companion file of every external sequence
	// group. Index 0 stays nil, group 0 lives in the model itself.
	groups [][]byte
	// tex is the companion texture model, if loaded.
	tex *Model
}

// New wraps data without validating it. The model takes ownership of data.
func New(name string, data []byte) *Model {
	return &Model{
		name: name,
		s:    mstream.New(data),
	}
}

// Load reads and validates the model name from st.
func Load(st Storage, name string) (*Model, error) {
	data, err := st.ReadFile(name)
	if err != nil {
		return nil, err
	}
	m := New(name, data)
	if err := m.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", name)
	}
	conlog.DPrintf("loaded %s (%d bytes)", name, len(data))
	return m, nil
}

// Save validates the model and writes it to st. Nothing is written if the
// model is invalid.
func (m *Model) Save(st Storage, name string) error {
	if err := m.Validate(); err != nil {
		return errors.Wrapf(err, "refusing to write %s", name)
	}
	return st.WriteFile(name, m.s.Bytes())
}

func (m *Model) Name() string {
	return m.name
}

// Bytes returns the blob. The slice is invalidated by InsertAt and RemoveAt.
func (m *Model) Bytes() []byte {
	return m.s.Bytes()
}

func (m *Model) Len() int {
	return m.s.Len()
}

func readAt(buf []byte, off int64, v interface{}) error {
	n := int64(binary.Size(v))
	if n < 0 {
		return errors.Errorf("cannot decode %T", v)
	}
	if off < 0 || off+n > int64(len(buf)) {
		return errors.Wrapf(ErrOutOfBounds, "%d bytes at %d (size %d)", n, off, len(buf))
	}
	return binary.Read(bytes.NewReader(buf[off:off+n]), binary.LittleEndian, v)
}

func element[T any](buf []byte, what string, i int, count, index int32) (T, error) {
	var v T
	if i < 0 || i >= int(count) {
		return v, errors.Wrapf(ErrOutOfBounds, "%s %d of %d", what, i, count)
	}
	err := readAt(buf, int64(index)+int64(i)*int64(binary.Size(v)), &v)
	if err != nil {
		return v, errors.Wrapf(err, "%s %d", what, i)
	}
	return v, nil
}

func header(buf []byte) (Header, error) {
	var h Header
	if err := readAt(buf, 0, &h); err != nil {
		return h, errors.Wrap(ErrMalformedHeader, err.Error())
	}
	return h, nil
}

func (m *Model) Header() (Header, error) {
	return header(m.s.Bytes())
}

// hdr returns the header or a zero header if the buffer is too short.
func (m *Model) hdr() Header {
	h, _ := m.Header()
	return h
}

func (m *Model) NumBones() int {
	return int(m.hdr().NumBones)
}

func (m *Model) Bone(i int) (Bone, error) {
	h := m.hdr()
	return element[Bone](m.s.Bytes(), "bone", i, h.NumBones, h.BoneIndex)
}

// Bones returns all bones in file order.
func (m *Model) Bones() ([]Bone, error) {
	bones := make([]Bone, m.NumBones())
	for i := range bones {
		b, err := m.Bone(i)
		if err != nil {
			return nil, err
		}
		bones[i] = b
	}
	return bones, nil
}

func (m *Model) NumBoneControllers() int {
	return int(m.hdr().NumBoneControllers)
}

func (m *Model) BoneController(i int) (BoneController, error) {
	h := m.hdr()
	return element[BoneController](m.s.Bytes(), "bone controller", i, h.NumBoneControllers, h.BoneControllerIndex)
}

func (m *Model) NumHitboxes() int {
	return int(m.hdr().NumHitboxes)
}

func (m *Model) Hitbox(i int) (Hitbox, error) {
	h := m.hdr()
	return element[Hitbox](m.s.Bytes(), "hitbox", i, h.NumHitboxes, h.HitboxIndex)
}

func (m *Model) NumAttachments() int {
	return int(m.hdr().NumAttachments)
}

func (m *Model) Attachment(i int) (Attachment, error) {
	h := m.hdr()
	return element[Attachment](m.s.Bytes(), "attachment", i, h.NumAttachments, h.AttachmentIndex)
}

func (m *Model) NumSequences() int {
	return int(m.hdr().NumSeq)
}

func (m *Model) Sequence(i int) (SeqDesc, error) {
	h := m.hdr()
	return element[SeqDesc](m.s.Bytes(), "sequence", i, h.NumSeq, h.SeqIndex)
}

func (m *Model) Events(seq int) ([]Event, error) {
	sd, err := m.Sequence(seq)
	if err != nil {
		return nil, err
	}
	evs := make([]Event, sd.NumEvents)
	for i := range evs {
		e, err := element[Event](m.s.Bytes(), "event", i, sd.NumEvents, sd.EventIndex)
		if err != nil {
			return nil, errors.Wrapf(err, "sequence %d", seq)
		}
		evs[i] = e
	}
	return evs, nil
}

func (m *Model) NumSequenceGroups() int {
	return int(m.hdr().NumSeqGroups)
}

func (m *Model) SequenceGroup(i int) (SeqGroup, error) {
	h := m.hdr()
	return element[SeqGroup](m.s.Bytes(), "sequence group", i, h.NumSeqGroups, h.SeqGroupIndex)
}

func (m *Model) NumBodyParts() int {
	return int(m.hdr().NumBodyParts)
}

func (m *Model) BodyPart(i int) (BodyPart, error) {
	h := m.hdr()
	return element[BodyPart](m.s.Bytes(), "body part", i, h.NumBodyParts, h.BodyPartIndex)
}

func (m *Model) SubModel(part, i int) (SubModel, error) {
	bp, err := m.BodyPart(part)
	if err != nil {
		return SubModel{}, err
	}
	return element[SubModel](m.s.Bytes(), "model", i, bp.NumModels, bp.ModelIndex)
}

func (m *Model) Mesh(part, model, i int) (Mesh, error) {
	sm, err := m.SubModel(part, model)
	if err != nil {
		return Mesh{}, err
	}
	return element[Mesh](m.s.Bytes(), "mesh", i, sm.NumMesh, sm.MeshIndex)
}

func vectors(buf []byte, what string, off, n int32) ([]vec.Vec3, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrOutOfBounds, "%s count %d", what, n)
	}
	vs := make([]vec.Vec3, n)
	if err := readAt(buf, int64(off), vs); err != nil {
		return nil, errors.Wrap(err, what)
	}
	return vs, nil
}

func boneBytes(buf []byte, what string, off, n int32) ([]byte, error) {
	if n < 0 || off < 0 || int64(off)+int64(n) > int64(len(buf)) {
		return nil, errors.Wrapf(ErrOutOfBounds, "%s: %d bytes at %d (size %d)", what, n, off, len(buf))
	}
	return append([]byte(nil), buf[off:off+n]...), nil
}

// Vertices returns the bind pose vertices of a sub-model.
func (m *Model) Vertices(part, model int) ([]vec.Vec3, error) {
	sm, err := m.SubModel(part, model)
	if err != nil {
		return nil, err
	}
	return vectors(m.s.Bytes(), "vertices", sm.VertIndex, sm.NumVerts)
}

func (m *Model) Normals(part, model int) ([]vec.Vec3, error) {
	sm, err := m.SubModel(part, model)
	if err != nil {
		return nil, err
	}
	return vectors(m.s.Bytes(), "normals", sm.NormIndex, sm.NumNorms)
}

// VertexBones returns the bone index of every vertex of a sub-model.
func (m *Model) VertexBones(part, model int) ([]byte, error) {
	sm, err := m.SubModel(part, model)
	if err != nil {
		return nil, err
	}
	return boneBytes(m.s.Bytes(), "vertex bones", sm.VertInfoIndex, sm.NumVerts)
}

func (m *Model) NormalBones(part, model int) ([]byte, error) {
	sm, err := m.SubModel(part, model)
	if err != nil {
		return nil, err
	}
	return boneBytes(m.s.Bytes(), "normal bones", sm.NormInfoIndex, sm.NumNorms)
}

// IsEmpty reports whether no sub-model of any body part has a mesh.
func (m *Model) IsEmpty() bool {
	for b := 0; b < m.NumBodyParts(); b++ {
		bp, err := m.BodyPart(b)
		if err != nil {
			continue
		}
		for i := 0; i < int(bp.NumModels); i++ {
			sm, err := m.SubModel(b, i)
			if err != nil {
				continue
			}
			if sm.NumMesh != 0 {
				return false
			}
		}
	}
	return true
}

// HasExternalTextures reports whether textures live in a companion file.
// Models without triangles need no textures.
func (m *Model) HasExternalTextures() bool {
	return m.hdr().NumTextures == 0 && !m.IsEmpty()
}

// HasExternalSequences reports whether animation lives in numbered
// companion files.
func (m *Model) HasExternalSequences() bool {
	return m.hdr().NumSeqGroups > 1
}
