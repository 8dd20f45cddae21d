// SPDX-License-Identifier: GPL-2.0-or-later

// Package summary describes a studio model as a protobuf struct.
package summary

import (
	"fmt"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"modelguy/crc"
	"modelguy/math/vec"
	"modelguy/pose"
	"modelguy/studio"
)

func vector(v vec.Vec3) []interface{} {
	return []interface{}{float64(v.X), float64(v.Y), float64(v.Z)}
}

func bones(m *studio.Model) ([]interface{}, error) {
	var out []interface{}
	for i := 0; i < m.NumBones(); i++ {
		b, err := m.Bone(i)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"name":   b.BoneName(),
			"parent": int(b.Parent),
		})
	}
	return out, nil
}

func sequences(m *studio.Model, s *pose.Solver) ([]interface{}, error) {
	var out []interface{}
	for i := 0; i < m.NumSequences(); i++ {
		sd, err := m.Sequence(i)
		if err != nil {
			return nil, err
		}
		e := map[string]interface{}{
			"name":   sd.Name(),
			"fps":    float64(sd.FPS),
			"frames": int(sd.NumFrames),
			"blends": int(sd.NumBlends),
			"events": int(sd.NumEvents),
			"group":  int(sd.SeqGroup),
		}
		if sd.MotionType != 0 {
			e["motion_bone"] = int(sd.MotionBone)
		}
		if s != nil {
			mins, maxs, err := s.Bounds(i)
			switch {
			case err == nil:
				e["bounds"] = []interface{}{vector(mins), vector(maxs)}
			case errors.Is(err, studio.ErrUnsupportedExternalData):
				// animation lives in a sequence group that is not loaded
			default:
				return nil, errors.Wrapf(err, "sequence %d", i)
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func bodyParts(m *studio.Model) ([]interface{}, error) {
	var out []interface{}
	for i := 0; i < m.NumBodyParts(); i++ {
		bp, err := m.BodyPart(i)
		if err != nil {
			return nil, err
		}
		var models []interface{}
		for j := 0; j < int(bp.NumModels); j++ {
			sm, err := m.SubModel(i, j)
			if err != nil {
				return nil, err
			}
			models = append(models, map[string]interface{}{
				"name":   sm.ModelName(),
				"verts":  int(sm.NumVerts),
				"meshes": int(sm.NumMesh),
			})
		}
		out = append(out, map[string]interface{}{
			"name":   bp.PartName(),
			"base":   int(bp.Base),
			"models": models,
		})
	}
	return out, nil
}

func textures(m *studio.Model) ([]interface{}, error) {
	var out []interface{}
	for i := 0; i < m.NumTextures(); i++ {
		t, pixels, pal, err := m.TexturePixels(i)
		if err != nil {
			return nil, err
		}
		d := crc.New()
		d.Write(pixels)
		d.Write(pal)
		out = append(out, map[string]interface{}{
			"name":   t.TextureName(),
			"width":  int(t.Width),
			"height": int(t.Height),
			"flags":  int(t.Flags),
			"crc":    fmt.Sprintf("%04x", d.Sum16()),
		})
	}
	return out, nil
}

// Build collects counts, names and per sequence bounds of m.
func Build(m *studio.Model) (*structpb.Struct, error) {
	h, err := m.Header()
	if err != nil {
		return nil, err
	}
	var s *pose.Solver
	if m.NumBones() > 0 {
		if s, err = pose.NewSolver(m); err != nil {
			return nil, err
		}
	}
	fields := map[string]interface{}{
		"name":               m.Name(),
		"internal_name":      h.ModelName(),
		"version":            int(h.Version),
		"length":             m.Len(),
		"crc":                fmt.Sprintf("%04x", crc.Checksum(m.Bytes())),
		"flags":              int(h.Flags),
		"eye_position":       vector(h.EyePosition),
		"bone_controllers":   m.NumBoneControllers(),
		"hitboxes":           m.NumHitboxes(),
		"attachments":        m.NumAttachments(),
		"sequence_groups":    m.NumSequenceGroups(),
		"skin_families":      int(h.NumSkinFamilies),
		"skin_refs":          int(h.NumSkinRef),
		"transitions":        int(h.NumTransitions),
		"empty":              m.IsEmpty(),
		"external_textures":  m.HasExternalTextures(),
		"external_sequences": m.HasExternalSequences(),
	}
	parts := []struct {
		key string
		f   func() ([]interface{}, error)
	}{
		{"bones", func() ([]interface{}, error) { return bones(m) }},
		{"sequences", func() ([]interface{}, error) { return sequences(m, s) }},
		{"body_parts", func() ([]interface{}, error) { return bodyParts(m) }},
		{"textures", func() ([]interface{}, error) { return textures(m) }},
	}
	for _, p := range parts {
		v, err := p.f()
		if err != nil {
			return nil, errors.Wrap(err, p.key)
		}
		if v == nil {
			v = []interface{}{}
		}
		fields[p.key] = v
	}
	return structpb.NewStruct(fields)
}

// JSON renders a summary as indented JSON.
func JSON(s *structpb.Struct) ([]byte, error) {
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(s)
}
