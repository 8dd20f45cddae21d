// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"bytes"

	"modelguy/math/vec"
)

const (
	Magic       = 'T'<<24 | 'S'<<16 | 'D'<<8 | 'I' // IDST
	SeqMagic    = 'Q'<<24 | 'S'<<16 | 'D'<<8 | 'I' // IDSQ
	Version     = 10
	MaxSeqGroup = 10000
)

// Texture flags
const (
	NFFlatShade  = 0x0001
	NFChrome     = 0x0002
	NFFullBright = 0x0004
	NFNoMips     = 0x0008
	NFAlpha      = 0x0010
	NFAdditive   = 0x0020
	NFMasked     = 0x0040
)

// Motion and controller types
const (
	X     = 0x0001
	Y     = 0x0002
	Z     = 0x0004
	XR    = 0x0008
	YR    = 0x0010
	ZR    = 0x0020
	LX    = 0x0040
	LY    = 0x0080
	LZ    = 0x0100
	AX    = 0x0200
	AY    = 0x0400
	AZ    = 0x0800
	AXR   = 0x1000
	AYR   = 0x2000
	AZR   = 0x4000
	Types = 0x7FFF
	RLoop = 0x8000
)

const (
	// MouthController is the controller index driven by the mouth value.
	MouthController = 4
	// NumChannels is the number of animated degrees of freedom per bone.
	NumChannels = 6
)

// Record sizes of the packed on-disk layout.
const (
	HeaderSize         = 244
	SeqHeaderSize      = 76
	BoneSize           = 112
	BoneControllerSize = 24
	HitboxSize         = 32
	SeqGroupSize       = 104
	SeqDescSize        = 176
	EventSize          = 76
	PivotSize          = 20
	AttachmentSize     = 88
	AnimSize           = 12
	BodyPartSize       = 76
	TextureSize        = 80
	SubModelSize       = 112
	MeshSize           = 20
	TriVertSize        = 8
	PaletteSize        = 256 * 3
)

type Header struct { // studiohdr_t
	ID          int32
	Version     int32
	Name        [64]byte
	Length      int32
	EyePosition vec.Vec3
	Min         vec.Vec3 // movement hull
	Max         vec.Vec3
	BBMin       vec.Vec3 // clipping box
	BBMax       vec.Vec3
	Flags       int32

	NumBones            int32
	BoneIndex           int32
	NumBoneControllers  int32
	BoneControllerIndex int32
	NumHitboxes         int32
	HitboxIndex         int32
	NumSeq              int32
	SeqIndex            int32
	NumSeqGroups        int32
	SeqGroupIndex       int32
	NumTextures         int32
	TextureIndex        int32
	TextureDataIndex    int32
	NumSkinRef          int32
	NumSkinFamilies     int32
	SkinIndex           int32
	NumBodyParts        int32
	BodyPartIndex       int32
	NumAttachments      int32
	AttachmentIndex     int32
	SoundTable          int32
	SoundIndex          int32
	SoundGroups         int32
	SoundGroupIndex     int32
	NumTransitions      int32
	TransitionIndex     int32
}

type SeqHeader struct { // studioseqhdr_t
	ID      int32
	Version int32
	Name    [64]byte
	Length  int32
}

type Bone struct { // mstudiobone_t
	Name           [32]byte
	Parent         int32
	Flags          int32
	BoneController [NumChannels]int32 // -1 == none
	Value          [NumChannels]float32
	Scale          [NumChannels]float32
}

type BoneController struct { // mstudiobonecontroller_t
	Bone  int32
	Type  int32
	Start float32
	End   float32
	Rest  int32
	Index int32 // 0-3 user controller, 4 mouth
}

type Hitbox struct { // mstudiobbox_t
	Bone  int32
	Group int32
	BBMin vec.Vec3
	BBMax vec.Vec3
}

type SeqGroup struct { // mstudioseqgroup_t
	Label [32]byte
	Name  [64]byte
	Cache int32
	Data  int32
}

type SeqDesc struct { // mstudioseqdesc_t
	Label              [32]byte
	FPS                float32
	Flags              int32
	Activity           int32
	ActWeight          int32
	NumEvents          int32
	EventIndex         int32
	NumFrames          int32
	NumPivots          int32
	PivotIndex         int32
	MotionType         int32
	MotionBone         int32
	LinearMovement     vec.Vec3
	AutomovePosIndex   int32
	AutomoveAngleIndex int32
	BBMin              vec.Vec3
	BBMax              vec.Vec3
	NumBlends          int32
	AnimIndex          int32
	BlendType          [2]int32
	BlendStart         [2]float32
	BlendEnd           [2]float32
	BlendParent        int32
	SeqGroup           int32
	EntryNode          int32
	ExitNode           int32
	NodeFlags          int32
	NextSeq            int32
}

type Event struct { // mstudioevent_t
	Frame   int32
	Event   int32
	Type    int32
	Options [64]byte
}

type Pivot struct { // mstudiopivot_t
	Org   vec.Vec3
	Start int32
	End   int32
}

type Attachment struct { // mstudioattachment_t
	Name    [32]byte
	Type    int32
	Bone    int32
	Org     vec.Vec3
	Vectors [3]vec.Vec3
}

// Anim holds the curve offsets of one bone in one blend. The offsets are
// relative to the start of the Anim record, 0 means the bone default.
type Anim struct { // mstudioanim_t
	Offset [NumChannels]uint16
}

type BodyPart struct { // mstudiobodyparts_t
	Name       [64]byte
	NumModels  int32
	Base       int32
	ModelIndex int32
}

type Texture struct { // mstudiotexture_t
	Name   [64]byte
	Flags  int32
	Width  int32
	Height int32
	Index  int32
}

type SubModel struct { // mstudiomodel_t
	Name           [64]byte
	Type           int32
	BoundingRadius float32
	NumMesh        int32
	MeshIndex      int32
	NumVerts       int32
	VertInfoIndex  int32
	VertIndex      int32
	NumNorms       int32
	NormInfoIndex  int32
	NormIndex      int32
	NumGroups      int32
	GroupIndex     int32
}

type Mesh struct { // mstudiomesh_t
	NumTris   int32
	TriIndex  int32
	SkinRef   int32
	NumNorms  int32
	NormIndex int32
}

type TriVert struct { // mstudiotrivert_t
	Vert int16
	Norm int16
	S    int16
	T    int16
}

// CString returns the NUL terminated prefix of a fixed size name field.
func CString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func (h *Header) ModelName() string {
	return CString(h.Name[:])
}

func (b *Bone) BoneName() string {
	return CString(b.Name[:])
}

func (s *SeqDesc) Name() string {
	return CString(s.Label[:])
}

func (g *SeqGroup) FileName() string {
	return CString(g.Name[:])
}

func (e *Event) OptionString() string {
	return CString(e.Options[:])
}

func (a *Attachment) AttachmentName() string {
	return CString(a.Name[:])
}

func (p *BodyPart) PartName() string {
	return CString(p.Name[:])
}

func (t *Texture) TextureName() string {
	return CString(t.Name[:])
}

func (m *SubModel) ModelName() string {
	return CString(m.Name[:])
}
