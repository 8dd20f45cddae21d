// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"fmt"

	"github.com/pkg/errors"

	"modelguy/conlog"
)

type validator struct {
	buf    []byte
	h      Header
	groups [][]byte
}

// Validate checks that every structure reachable from the header lies inside
// the buffer and that all cross references are in range. Variable length
// streams are decoded as far as needed to know their size. Validate never
// modifies the model.
func (m *Model) Validate() error {
	v := &validator{buf: m.s.Bytes(), groups: m.groups}
	return v.run()
}

func (v *validator) run() error {
	if err := v.header(); err != nil {
		return err
	}
	checks := []func() error{
		v.bones,
		v.controllers,
		v.hitboxes,
		v.attachments,
		v.skins,
		v.textures,
		v.transitions,
		v.sequences,
		v.bodyParts,
	}
	for _, c := range checks {
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}

// span checks that count records of size stride starting at off are inside buf.
func span(buf []byte, where string, off int32, count int64, stride int64) error {
	if count < 0 {
		return verr(ErrOutOfBounds, where, "negative count %d", count)
	}
	if count == 0 {
		return nil
	}
	end := int64(off) + count*stride
	if off < 0 || end > int64(len(buf)) {
		return verr(ErrOutOfBounds, where, "%d x %d bytes at %d exceed size %d", count, stride, off, len(buf))
	}
	return nil
}

func (v *validator) span(where string, off int32, count int32, stride int64) error {
	return span(v.buf, where, off, int64(count), stride)
}

func (v *validator) header() error {
	if len(v.buf) < HeaderSize {
		return verr(ErrMalformedHeader, "header", "%d bytes, need %d", len(v.buf), HeaderSize)
	}
	h, err := header(v.buf)
	if err != nil {
		return verr(ErrMalformedHeader, "header", "%v", err)
	}
	v.h = h
	if h.ID != Magic {
		return verr(ErrMalformedHeader, "header", "wrong id 0x%08x", uint32(h.ID))
	}
	if h.Version != Version {
		return verr(ErrMalformedHeader, "header", "has wrong version number (%d should be %d)", h.Version, Version)
	}
	if h.ModelName() == "" {
		return verr(ErrMalformedHeader, "header", "empty name")
	}
	if h.NumSeqGroups < 0 || h.NumSeqGroups >= MaxSeqGroup {
		return verr(ErrMalformedHeader, "header", "too many sequence groups (%d)", h.NumSeqGroups)
	}
	if int(h.Length) != len(v.buf) {
		conlog.Warnf("%s: header length %d does not match size %d\n", h.ModelName(), h.Length, len(v.buf))
	}
	return nil
}

func (v *validator) bones() error {
	h := &v.h
	if err := v.span("bones", h.BoneIndex, h.NumBones, BoneSize); err != nil {
		return err
	}
	parents := make([]int32, h.NumBones)
	for i := range parents {
		b, err := element[Bone](v.buf, "bone", i, h.NumBones, h.BoneIndex)
		if err != nil {
			return verr(ErrOutOfBounds, fmt.Sprintf("bone %d", i), "%v", err)
		}
		if b.Parent < -1 || b.Parent >= h.NumBones || int(b.Parent) == i {
			return verr(ErrInvalidCrossReference, fmt.Sprintf("bone %d", i), "invalid parent %d", b.Parent)
		}
		for c, bc := range b.BoneController {
			if bc < -1 || bc >= h.NumBoneControllers {
				return verr(ErrInvalidCrossReference, fmt.Sprintf("bone %d", i), "channel %d references controller %d of %d", c, bc, h.NumBoneControllers)
			}
		}
		parents[i] = b.Parent
	}
	for i := range parents {
		p, steps := parents[i], 0
		for p != -1 {
			if steps++; steps > len(parents) {
				return verr(ErrInvalidCrossReference, fmt.Sprintf("bone %d", i), "parent chain has a cycle")
			}
			p = parents[p]
		}
	}
	return nil
}

func (v *validator) boneRef(where string, bone int32) error {
	if bone < -1 || bone >= v.h.NumBones {
		return verr(ErrInvalidCrossReference, where, "references invalid bone %d", bone)
	}
	return nil
}

func (v *validator) controllers() error {
	h := &v.h
	if err := v.span("bone controllers", h.BoneControllerIndex, h.NumBoneControllers, BoneControllerSize); err != nil {
		return err
	}
	for i := 0; i < int(h.NumBoneControllers); i++ {
		c, err := element[BoneController](v.buf, "bone controller", i, h.NumBoneControllers, h.BoneControllerIndex)
		if err != nil {
			return verr(ErrOutOfBounds, fmt.Sprintf("bone controller %d", i), "%v", err)
		}
		if err := v.boneRef(fmt.Sprintf("bone controller %d", i), c.Bone); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) hitboxes() error {
	h := &v.h
	if err := v.span("hitboxes", h.HitboxIndex, h.NumHitboxes, HitboxSize); err != nil {
		return err
	}
	for i := 0; i < int(h.NumHitboxes); i++ {
		b, err := element[Hitbox](v.buf, "hitbox", i, h.NumHitboxes, h.HitboxIndex)
		if err != nil {
			return verr(ErrOutOfBounds, fmt.Sprintf("hitbox %d", i), "%v", err)
		}
		if err := v.boneRef(fmt.Sprintf("hitbox %d", i), b.Bone); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) attachments() error {
	h := &v.h
	if err := v.span("attachments", h.AttachmentIndex, h.NumAttachments, AttachmentSize); err != nil {
		return err
	}
	for i := 0; i < int(h.NumAttachments); i++ {
		a, err := element[Attachment](v.buf, "attachment", i, h.NumAttachments, h.AttachmentIndex)
		if err != nil {
			return verr(ErrOutOfBounds, fmt.Sprintf("attachment %d", i), "%v", err)
		}
		if err := v.boneRef(fmt.Sprintf("attachment %d", i), a.Bone); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) skins() error {
	h := &v.h
	if h.NumSkinRef < 0 || h.NumSkinFamilies < 0 {
		return verr(ErrOutOfBounds, "skin families", "negative size %dx%d", h.NumSkinFamilies, h.NumSkinRef)
	}
	return span(v.buf, "skin families", h.SkinIndex, int64(h.NumSkinFamilies)*int64(h.NumSkinRef), 2)
}

func (v *validator) textures() error {
	h := &v.h
	if err := v.span("textures", h.TextureIndex, h.NumTextures, TextureSize); err != nil {
		return err
	}
	for i := 0; i < int(h.NumTextures); i++ {
		where := fmt.Sprintf("texture %d", i)
		t, err := element[Texture](v.buf, "texture", i, h.NumTextures, h.TextureIndex)
		if err != nil {
			return verr(ErrOutOfBounds, where, "%v", err)
		}
		if t.Width < 0 || t.Height < 0 {
			return verr(ErrOutOfBounds, where, "size %dx%d", t.Width, t.Height)
		}
		if err := span(v.buf, where+" data", t.Index, int64(t.Width)*int64(t.Height)+PaletteSize, 1); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) transitions() error {
	h := &v.h
	if h.NumTransitions < 0 {
		return verr(ErrOutOfBounds, "transitions", "negative count %d", h.NumTransitions)
	}
	return span(v.buf, "transitions", h.TransitionIndex, int64(h.NumTransitions)*int64(h.NumTransitions), 1)
}

func (v *validator) sequences() error {
	h := &v.h
	if err := v.span("sequence groups", h.SeqGroupIndex, h.NumSeqGroups, SeqGroupSize); err != nil {
		return err
	}
	if err := v.span("sequences", h.SeqIndex, h.NumSeq, SeqDescSize); err != nil {
		return err
	}
	for i := 0; i < int(h.NumSeq); i++ {
		if err := v.sequence(i); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) sequence(i int) error {
	h := &v.h
	where := fmt.Sprintf("sequence %d", i)
	sd, err := element[SeqDesc](v.buf, "sequence", i, h.NumSeq, h.SeqIndex)
	if err != nil {
		return verr(ErrOutOfBounds, where, "%v", err)
	}
	if err := v.span(where+" events", sd.EventIndex, sd.NumEvents, EventSize); err != nil {
		return err
	}
	if err := v.span(where+" pivots", sd.PivotIndex, sd.NumPivots, PivotSize); err != nil {
		return err
	}
	if sd.NumFrames < 0 {
		return verr(ErrMalformedStream, where, "negative frame count %d", sd.NumFrames)
	}
	if sd.NumBlends < 1 || sd.NumBlends > 4 {
		return verr(ErrMalformedStream, where, "unsupported blend count %d", sd.NumBlends)
	}
	if sd.MotionType&(X|Y|Z) != 0 && (sd.MotionBone < 0 || sd.MotionBone >= h.NumBones) {
		return verr(ErrInvalidCrossReference, where, "motion bone %d of %d", sd.MotionBone, h.NumBones)
	}
	if sd.SeqGroup < 0 || sd.SeqGroup >= max(h.NumSeqGroups, 1) {
		return verr(ErrInvalidCrossReference, where, "sequence group %d of %d", sd.SeqGroup, h.NumSeqGroups)
	}
	var data int32
	if h.NumSeqGroups > 0 {
		g, err := element[SeqGroup](v.buf, "sequence group", int(sd.SeqGroup), h.NumSeqGroups, h.SeqGroupIndex)
		if err != nil {
			return verr(ErrOutOfBounds, where, "%v", err)
		}
		data = g.Data
	}
	buf := v.buf
	if sd.SeqGroup > 0 {
		if int(sd.SeqGroup) >= len(v.groups) || v.groups[sd.SeqGroup] == nil {
			// lives in a companion file that is not loaded
			return nil
		}
		buf = v.groups[sd.SeqGroup]
	}
	return v.anims(buf, where, int64(data)+int64(sd.AnimIndex), &sd)
}

func (v *validator) anims(buf []byte, where string, base int64, sd *SeqDesc) error {
	nb := int64(v.h.NumBones)
	if base < 0 || base > int64(len(buf)) {
		return verr(ErrOutOfBounds, where+" anim", "anim index %d exceeds size %d", base, len(buf))
	}
	if err := span(buf, where+" anim", int32(base), int64(sd.NumBlends)*nb, AnimSize); err != nil {
		return err
	}
	for b := int64(0); b < int64(sd.NumBlends); b++ {
		for i := int64(0); i < nb; i++ {
			rec := base + (b*nb+i)*AnimSize
			var a Anim
			if err := readAt(buf, rec, &a); err != nil {
				return verr(ErrOutOfBounds, fmt.Sprintf("%s blend %d bone %d", where, b, i), "%v", err)
			}
			for c, o := range a.Offset {
				if o == 0 {
					continue
				}
				if _, err := CurveExtent(buf, rec+int64(o), int(sd.NumFrames)); err != nil {
					w := fmt.Sprintf("%s blend %d bone %d channel %d", where, b, i, c)
					return &ValidationError{Kind: kindOf(err), Where: w, Detail: err.Error()}
				}
			}
		}
	}
	return nil
}

func (v *validator) bodyParts() error {
	h := &v.h
	if err := v.span("body parts", h.BodyPartIndex, h.NumBodyParts, BodyPartSize); err != nil {
		return err
	}
	for b := 0; b < int(h.NumBodyParts); b++ {
		where := fmt.Sprintf("body part %d", b)
		bp, err := element[BodyPart](v.buf, "body part", b, h.NumBodyParts, h.BodyPartIndex)
		if err != nil {
			return verr(ErrOutOfBounds, where, "%v", err)
		}
		if err := v.span(where+" models", bp.ModelIndex, bp.NumModels, SubModelSize); err != nil {
			return err
		}
		for i := 0; i < int(bp.NumModels); i++ {
			sm, err := element[SubModel](v.buf, "model", i, bp.NumModels, bp.ModelIndex)
			if err != nil {
				return verr(ErrOutOfBounds, fmt.Sprintf("%s model %d", where, i), "%v", err)
			}
			if err := v.subModel(fmt.Sprintf("%s model %d", where, i), &sm); err != nil {
				return err
			}
		}
	}
	return nil
}

func (v *validator) subModel(where string, sm *SubModel) error {
	if err := v.span(where+" vertices", sm.VertIndex, sm.NumVerts, 12); err != nil {
		return err
	}
	if err := v.span(where+" vertex bones", sm.VertInfoIndex, sm.NumVerts, 1); err != nil {
		return err
	}
	if err := v.span(where+" normals", sm.NormIndex, sm.NumNorms, 12); err != nil {
		return err
	}
	if err := v.span(where+" normal bones", sm.NormInfoIndex, sm.NumNorms, 1); err != nil {
		return err
	}
	if err := v.boneIndices(where+" vertex bones", sm.VertInfoIndex, sm.NumVerts); err != nil {
		return err
	}
	if err := v.boneIndices(where+" normal bones", sm.NormInfoIndex, sm.NumNorms); err != nil {
		return err
	}
	if err := v.span(where+" meshes", sm.MeshIndex, sm.NumMesh, MeshSize); err != nil {
		return err
	}
	for k := 0; k < int(sm.NumMesh); k++ {
		mw := fmt.Sprintf("%s mesh %d", where, k)
		me, err := element[Mesh](v.buf, "mesh", k, sm.NumMesh, sm.MeshIndex)
		if err != nil {
			return verr(ErrOutOfBounds, mw, "%v", err)
		}
		if err := v.span(mw+" normals", me.NormIndex, me.NumNorms, 12); err != nil {
			return err
		}
		_, maxVert, maxNorm, err := ScanTriangles(v.buf, int64(me.TriIndex))
		if err != nil {
			return &ValidationError{Kind: kindOf(err), Where: mw + " triangles", Detail: err.Error()}
		}
		if maxVert >= int(sm.NumVerts) {
			return verr(ErrInvalidCrossReference, mw+" triangles", "vertex %d of %d", maxVert, sm.NumVerts)
		}
		if maxNorm >= int(sm.NumNorms) {
			return verr(ErrInvalidCrossReference, mw+" triangles", "normal %d of %d", maxNorm, sm.NumNorms)
		}
		if v.h.NumTextures > 0 && (me.SkinRef < 0 || me.SkinRef >= v.h.NumSkinRef) {
			conlog.Warnf("%s: invalid skin reference %d (max %d)\n", mw, me.SkinRef, v.h.NumSkinRef)
		}
	}
	return nil
}

func (v *validator) boneIndices(where string, off, n int32) error {
	for i := int32(0); i < n; i++ {
		if b := int32(v.buf[off+i]); b >= v.h.NumBones {
			return verr(ErrInvalidCrossReference, where, "entry %d references bone %d of %d", i, b, v.h.NumBones)
		}
	}
	return nil
}

// kindOf finds the sentinel a decoder error wraps.
func kindOf(err error) error {
	for _, k := range []error{ErrOutOfBounds, ErrMalformedStream, ErrInvalidCrossReference} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrOutOfBounds
}
