// SPDX-License-Identifier: GPL-2.0-or-later

// Package studiotest builds small synthetic studio models for tests.
package studiotest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"modelguy/math/vec"
	"modelguy/studio"
)

type Bone struct {
	Name   string
	Parent int
	Value  [studio.NumChannels]float32
	Scale  [studio.NumChannels]float32
	// Controllers binds channels to controllers, nil means unbound.
	Controllers []int
}

type Controller struct {
	Bone       int
	Type       int
	Start, End float32
	Index      int
}

type Event struct {
	Frame, Event int
	Options      string
}

type Sequence struct {
	Label      string
	FPS        float32
	NumFrames  int
	NumBlends  int // 0 means 1
	MotionType int
	MotionBone int
	SeqGroup   int
	Events     []Event
	// Curves[blend][bone][channel] is a raw curve stream, nil keeps the
	// bone default.
	Curves [][][studio.NumChannels][]int16
}

type Mesh struct {
	SkinRef int
	// Commands is a triangle command stream including the terminating 0.
	Commands []int16
}

type SubModel struct {
	Name      string
	Verts     []vec.Vec3
	VertBones []byte // nil means bone 0
	Norms     []vec.Vec3
	NormBones []byte
	Meshes    []Mesh
}

type BodyPart struct {
	Name   string
	Base   int // 0 means 1
	Models []SubModel
}

type Texture struct {
	Name          string
	Flags         int
	Width, Height int
	Pixels        []byte // nil means zero pixels
	Palette       []byte // nil means a gray ramp
}

type Model struct {
	Name        string
	Bones       []Bone
	Controllers []Controller
	Hitboxes    []studio.Hitbox
	Attachments []studio.Attachment
	Sequences   []Sequence
	// SeqGroups is the number of sequence groups, 0 means 1.
	SeqGroups   int
	BodyParts   []BodyPart
	Textures    []Texture
	Skins       [][]int16 // nil means one identity family
	Transitions int
}

// Span returns one curve span covering total frames.
func Span(total int, values ...int16) []int16 {
	h := uint16(len(values)) | uint16(total)<<8
	return append([]int16{int16(h)}, values...)
}

// Curve concatenates spans.
func Curve(spans ...[]int16) []int16 {
	var c []int16
	for _, s := range spans {
		c = append(c, s...)
	}
	return c
}

func run(n int, verts []int) []int16 {
	out := []int16{int16(n)}
	for _, v := range verts {
		out = append(out, int16(v), int16(v), int16(v), int16(v))
	}
	return out
}

// Strip returns a strip run over verts. Normal index and texture
// coordinates equal the vertex index.
func Strip(verts ...int) []int16 {
	return run(len(verts), verts)
}

// Fan returns a fan run over verts.
func Fan(verts ...int) []int16 {
	return run(-len(verts), verts)
}

// Commands joins runs and terminates the stream.
func Commands(runs ...[]int16) []int16 {
	var c []int16
	for _, r := range runs {
		c = append(c, r...)
	}
	return append(c, 0)
}

type writer struct {
	bytes.Buffer
}

func (w *writer) pos() int32 {
	return int32(w.Len())
}

func (w *writer) align() {
	for w.Len()%4 != 0 {
		w.WriteByte(0)
	}
}

func (w *writer) put(v interface{}) {
	if err := binary.Write(&w.Buffer, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

func name32(s string) (n [32]byte) {
	copy(n[:], s)
	return n
}

func name64(s string) (n [64]byte) {
	copy(n[:], s)
	return n
}

func (m *Model) numGroups() int {
	return max(m.SeqGroups, 1)
}

func blends(s *Sequence) int {
	return max(s.NumBlends, 1)
}

// animBlock lays out the anim records of s followed by its curves.
func (m *Model) animBlock(s *Sequence) []byte {
	nb := len(m.Bones)
	records := make([]studio.Anim, blends(s)*nb)
	var curves writer
	base := len(records) * studio.AnimSize
	for b := 0; b < blends(s); b++ {
		for i := 0; i < nb; i++ {
			if b >= len(s.Curves) || i >= len(s.Curves[b]) {
				continue
			}
			rec := (b*nb + i) * studio.AnimSize
			for c, curve := range s.Curves[b][i] {
				if curve == nil {
					continue
				}
				records[b*nb+i].Offset[c] = uint16(base + curves.Len() - rec)
				curves.put(curve)
			}
		}
	}
	var w writer
	w.put(records)
	w.Write(curves.Bytes())
	w.align()
	return w.Bytes()
}

func align4(v int32) int32 {
	return (v + 3) &^ 3
}

func gray() []byte {
	p := make([]byte, studio.PaletteSize)
	for i := 0; i < 256; i++ {
		p[i*3], p[i*3+1], p[i*3+2] = byte(i), byte(i), byte(i)
	}
	return p
}

// Build lays out the model as a valid blob.
func (m *Model) Build() []byte {
	var w writer
	h := studio.Header{
		ID:      studio.Magic,
		Version: studio.Version,
		Name:    name64(m.Name),
	}
	w.Write(make([]byte, studio.HeaderSize))

	h.NumBones, h.BoneIndex = int32(len(m.Bones)), w.pos()
	for _, b := range m.Bones {
		sb := studio.Bone{
			Name:   name32(b.Name),
			Parent: int32(b.Parent),
			Value:  b.Value,
			Scale:  b.Scale,
		}
		for c := range sb.BoneController {
			sb.BoneController[c] = -1
			if c < len(b.Controllers) {
				sb.BoneController[c] = int32(b.Controllers[c])
			}
		}
		w.put(&sb)
	}

	h.NumBoneControllers, h.BoneControllerIndex = int32(len(m.Controllers)), w.pos()
	for _, c := range m.Controllers {
		w.put(&studio.BoneController{
			Bone:  int32(c.Bone),
			Type:  int32(c.Type),
			Start: c.Start,
			End:   c.End,
			Index: int32(c.Index),
		})
	}

	h.NumHitboxes, h.HitboxIndex = int32(len(m.Hitboxes)), w.pos()
	w.put(m.Hitboxes)
	h.NumAttachments, h.AttachmentIndex = int32(len(m.Attachments)), w.pos()
	w.put(m.Attachments)

	h.NumSeqGroups, h.SeqGroupIndex = int32(m.numGroups()), w.pos()
	for g := 0; g < m.numGroups(); g++ {
		sg := studio.SeqGroup{Label: name32("default")}
		if g > 0 {
			n, _ := studio.SequenceGroupFileName(m.Name, g)
			sg.Name = name64(n)
		}
		w.put(&sg)
	}

	seqs := make([]studio.SeqDesc, len(m.Sequences))
	for i := range m.Sequences {
		s := &m.Sequences[i]
		seqs[i] = studio.SeqDesc{
			Label:      name32(s.Label),
			FPS:        s.FPS,
			NumFrames:  int32(s.NumFrames),
			NumBlends:  int32(blends(s)),
			MotionType: int32(s.MotionType),
			MotionBone: int32(s.MotionBone),
			SeqGroup:   int32(s.SeqGroup),
			NumEvents:  int32(len(s.Events)),
			EventIndex: w.pos(),
		}
		for _, e := range s.Events {
			w.put(&studio.Event{Frame: int32(e.Frame), Event: int32(e.Event), Options: name64(e.Options)})
		}
	}
	w.align()
	for i := range m.Sequences {
		if m.Sequences[i].SeqGroup != 0 {
			continue
		}
		seqs[i].AnimIndex = w.pos()
		w.Write(m.animBlock(&m.Sequences[i]))
	}
	for g := 1; g < m.numGroups(); g++ {
		for i, off := range m.groupLayout(g) {
			seqs[i].AnimIndex = off
		}
	}
	h.NumSeq, h.SeqIndex = int32(len(seqs)), w.pos()
	w.put(seqs)

	parts := make([]studio.BodyPart, len(m.BodyParts))
	for b := range m.BodyParts {
		bp := &m.BodyParts[b]
		models := make([]studio.SubModel, len(bp.Models))
		for i := range bp.Models {
			models[i] = m.subModel(&w, &bp.Models[i])
		}
		parts[b] = studio.BodyPart{
			Name:       name64(bp.Name),
			NumModels:  int32(len(models)),
			Base:       int32(max(bp.Base, 1)),
			ModelIndex: w.pos(),
		}
		w.put(models)
	}
	h.NumBodyParts, h.BodyPartIndex = int32(len(parts)), w.pos()
	w.put(parts)

	h.NumTransitions, h.TransitionIndex = int32(m.Transitions), w.pos()
	w.Write(make([]byte, m.Transitions*m.Transitions))
	w.align()

	// texture table, skin families and texture data stay together at the
	// end like studiomdl writes them
	skins := m.Skins
	if skins == nil && len(m.Textures) > 0 {
		fam := make([]int16, len(m.Textures))
		for i := range fam {
			fam[i] = int16(i)
		}
		skins = [][]int16{fam}
	}
	h.NumSkinFamilies = int32(len(skins))
	if len(skins) > 0 {
		h.NumSkinRef = int32(len(skins[0]))
	}
	h.NumTextures, h.TextureIndex = int32(len(m.Textures)), w.pos()
	h.SkinIndex = h.TextureIndex + h.NumTextures*studio.TextureSize
	h.TextureDataIndex = align4(h.SkinIndex + h.NumSkinFamilies*h.NumSkinRef*2)
	texs := make([]studio.Texture, len(m.Textures))
	off := h.TextureDataIndex
	for i, t := range m.Textures {
		texs[i] = studio.Texture{
			Name:   name64(t.Name),
			Flags:  int32(t.Flags),
			Width:  int32(t.Width),
			Height: int32(t.Height),
			Index:  off,
		}
		off = align4(off + int32(t.Width*t.Height) + studio.PaletteSize)
	}
	w.put(texs)
	for _, f := range skins {
		w.put(f)
	}
	w.align()
	for _, t := range m.Textures {
		pix := t.Pixels
		if pix == nil {
			pix = make([]byte, t.Width*t.Height)
		}
		pal := t.Palette
		if pal == nil {
			pal = gray()
		}
		w.Write(pix)
		w.Write(pal)
		w.align()
	}

	out := w.Bytes()
	h.Length = int32(len(out))
	var hw writer
	hw.put(&h)
	copy(out, hw.Bytes())
	return out
}

func (m *Model) subModel(w *writer, sm *SubModel) studio.SubModel {
	r := studio.SubModel{
		Name:     name64(sm.Name),
		NumVerts: int32(len(sm.Verts)),
		NumNorms: int32(len(sm.Norms)),
		NumMesh:  int32(len(sm.Meshes)),
	}
	r.VertIndex = w.pos()
	w.put(sm.Verts)
	r.NormIndex = w.pos()
	w.put(sm.Norms)
	r.VertInfoIndex = w.pos()
	vb := sm.VertBones
	if vb == nil {
		vb = make([]byte, len(sm.Verts))
	}
	w.Write(vb)
	r.NormInfoIndex = w.pos()
	nb := sm.NormBones
	if nb == nil {
		nb = make([]byte, len(sm.Norms))
	}
	w.Write(nb)
	w.align()
	meshes := make([]studio.Mesh, len(sm.Meshes))
	for k, me := range sm.Meshes {
		meshes[k] = studio.Mesh{
			SkinRef:   int32(me.SkinRef),
			NumNorms:  int32(len(sm.Norms)),
			NormIndex: r.NormIndex,
			TriIndex:  w.pos(),
		}
		meshes[k].NumTris = int32(numTris(me.Commands))
		w.put(me.Commands)
		w.align()
	}
	r.MeshIndex = w.pos()
	w.put(meshes)
	return r
}

func numTris(cmds []int16) int {
	n := 0
	for i := 0; i < len(cmds) && cmds[i] != 0; {
		c := int(cmds[i])
		if c < 0 {
			c = -c
		}
		n += c - 2
		i += 1 + c*4
	}
	return n
}

// groupFile builds the companion file of group g. It returns the file
// and the anim index of every sequence stored in it.
func (m *Model) groupFile(g int) ([]byte, map[int]int32) {
	var w writer
	n, _ := studio.SequenceGroupFileName(m.Name, g)
	sh := studio.SeqHeader{ID: studio.SeqMagic, Version: studio.Version, Name: name64(n)}
	w.Write(make([]byte, studio.SeqHeaderSize))
	offs := map[int]int32{}
	for i := range m.Sequences {
		if m.Sequences[i].SeqGroup != g {
			continue
		}
		offs[i] = w.pos()
		w.Write(m.animBlock(&m.Sequences[i]))
	}
	out := w.Bytes()
	sh.Length = int32(len(out))
	var hw writer
	hw.put(&sh)
	copy(out, hw.Bytes())
	return out, offs
}

func (m *Model) groupLayout(g int) map[int]int32 {
	_, offs := m.groupFile(g)
	return offs
}

// GroupFile returns the companion file of sequence group g.
func (m *Model) GroupFile(g int) []byte {
	b, _ := m.groupFile(g)
	return b
}

// TextureModel splits the textures off into a companion texture model and
// returns the primary model without textures and the texture model.
func (m *Model) TextureModel() (primary, textures []byte) {
	p := *m
	p.Textures = nil
	p.Skins = nil
	t := Model{
		Name:     m.Name,
		Textures: m.Textures,
		Skins:    m.Skins,
	}
	return p.Build(), t.Build()
}

// Simple returns a two bone model with one animated sequence, one strip
// mesh and one texture.
func Simple(name string) *Model {
	return &Model{
		Name: name,
		Bones: []Bone{
			{Name: "root", Parent: -1, Scale: [6]float32{1, 1, 1, 1, 1, 1}},
			{Name: "child", Parent: 0, Value: [6]float32{1, 0, 0, 0, 0, 0}, Scale: [6]float32{1, 1, 1, 1, 1, 1}},
		},
		Controllers: []Controller{
			{Bone: 0, Type: studio.ZR, Start: -90, End: 90, Index: 0},
		},
		Sequences: []Sequence{{
			Label:     "idle",
			FPS:       10,
			NumFrames: 2,
			Events:    []Event{{Frame: 1, Event: 5004, Options: "step"}},
			Curves: [][][studio.NumChannels][]int16{{
				{Span(2, 10, 20)},
				{},
			}},
		}},
		BodyParts: []BodyPart{{
			Name: "body",
			Models: []SubModel{{
				Name:  "body",
				Verts: []vec.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
				Norms: []vec.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
				Meshes: []Mesh{{
					Commands: Commands(Strip(0, 1, 2, 3)),
				}},
			}},
		}},
		Textures: []Texture{{Name: "skin.bmp", Width: 2, Height: 2, Pixels: []byte{0, 1, 2, 3}}},
	}
}

// MemStorage is an in memory file store.
type MemStorage map[string][]byte

func (s MemStorage) ReadFile(name string) ([]byte, error) {
	b, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return append([]byte(nil), b...), nil
}

func (s MemStorage) WriteFile(name string, data []byte) error {
	s[filepath.Clean(name)] = append([]byte(nil), data...)
	return nil
}

func (s MemStorage) Exists(name string) bool {
	_, ok := s[name]
	return ok
}
