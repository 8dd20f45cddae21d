// SPDX-License-Identifier: GPL-2.0-or-later

// Package pose evaluates the skeleton of a studio model for one frame of a
// sequence: curve sampling, controller adjustment, multi-way blending, gait
// overlay and hierarchy resolution.
package pose

import (
	"github.com/pkg/errors"

	qmath "modelguy/math"
	"modelguy/math/matrix"
	"modelguy/math/quat"
	"modelguy/math/vec"
	"modelguy/studio"
)

const (
	DefaultSpine  = "Bip01 Spine"
	DefaultPelvis = "Bip01 Pelvis"

	// two angles closer than this skip the slerp
	equalEpsilon = 0.001
)

// Gait selects a secondary sequence driving the lower body.
type Gait struct {
	Sequence int
	// Frame is a fraction of the gait sequence in [0, 1], unlike
	// Request.Frame. NaN counts as 0.
	Frame float32
}

type Request struct {
	Sequence int
	// Frame is clamped to [0, numframes-1], NaN counts as 0.
	Frame float32
	// Angles orients the model in degrees (X roll, Y pitch, Z yaw).
	Angles      vec.Vec3
	Controllers [4]uint8
	Mouth       uint8
	Blenders    [2]uint8
	Gait        *Gait
}

// DefaultRequest returns a request for frame 0 of sequence seq with
// centered controllers.
func DefaultRequest(seq int) Request {
	return Request{
		Sequence:    seq,
		Controllers: [4]uint8{127, 127, 127, 127},
	}
}

// Pose holds per bone results, indexed like the model's bones.
type Pose struct {
	Positions  []vec.Vec3
	Rotations  []quat.Quat
	Transforms []matrix.Matrix3x4
}

type Option func(*Solver)

// WithGaitAnchors sets the bone names splitting the skeleton for gait.
func WithGaitAnchors(spine, pelvis string) Option {
	return func(s *Solver) {
		s.spine = spine
		s.pelvis = pelvis
	}
}

// Solver evaluates poses of one model. It snapshots the skeleton on
// creation and is safe for concurrent use as long as the model is not
// edited.
type Solver struct {
	m      *studio.Model
	bones  []studio.Bone
	ctrls  []studio.BoneController
	order  []int
	lower  []bool
	spine  string
	pelvis string
}

func NewSolver(m *studio.Model, opts ...Option) (*Solver, error) {
	s := &Solver{
		m:      m,
		spine:  DefaultSpine,
		pelvis: DefaultPelvis,
	}
	for _, o := range opts {
		o(s)
	}
	var err error
	if s.bones, err = m.Bones(); err != nil {
		return nil, err
	}
	s.ctrls = make([]studio.BoneController, m.NumBoneControllers())
	for i := range s.ctrls {
		if s.ctrls[i], err = m.BoneController(i); err != nil {
			return nil, err
		}
	}
	if s.order, err = boneOrder(s.bones); err != nil {
		return nil, err
	}
	s.lower = s.partition()
	return s, nil
}

// boneOrder returns the bones sorted so every parent precedes its children.
func boneOrder(bones []studio.Bone) ([]int, error) {
	order := make([]int, 0, len(bones))
	done := make([]bool, len(bones))
	var visit func(i, depth int) error
	visit = func(i, depth int) error {
		if done[i] {
			return nil
		}
		if depth > len(bones) {
			return errors.Wrapf(studio.ErrInvalidCrossReference, "bone %d parent chain has a cycle", i)
		}
		p := int(bones[i].Parent)
		if p < -1 || p >= len(bones) {
			return errors.Wrapf(studio.ErrInvalidCrossReference, "bone %d has invalid parent %d", i, p)
		}
		if p >= 0 {
			if err := visit(p, depth+1); err != nil {
				return err
			}
		}
		done[i] = true
		order = append(order, i)
		return nil
	}
	for i := range bones {
		if err := visit(i, 0); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (s *Solver) find(name string) int {
	for i := range s.bones {
		if s.bones[i].BoneName() == name {
			return i
		}
	}
	return -1
}

// partition marks the bones a gait sequence overrides: everything outside
// the spine subtree. Without both anchors the whole skeleton is upper body.
func (s *Solver) partition() []bool {
	lower := make([]bool, len(s.bones))
	spine := s.find(s.spine)
	if spine < 0 || s.find(s.pelvis) < 0 {
		return lower
	}
	upper := make([]bool, len(s.bones))
	for _, i := range s.order {
		p := int(s.bones[i].Parent)
		upper[i] = i == spine || (p >= 0 && upper[p])
		lower[i] = !upper[i]
	}
	return lower
}

// Lower reports whether bone belongs to the part a gait sequence drives.
func (s *Solver) Lower(bone int) bool {
	return bone >= 0 && bone < len(s.lower) && s.lower[bone]
}

func (s *Solver) NumBones() int {
	return len(s.bones)
}

// boneAdj computes the adjustment of every controller in radians for
// rotations and units for translations.
func (s *Solver) boneAdj(req *Request) []float32 {
	adj := make([]float32, len(s.ctrls))
	for j := range s.ctrls {
		c := &s.ctrls[j]
		var v float32
		if c.Index >= 0 && c.Index <= 3 {
			in := float32(req.Controllers[c.Index])
			if c.Type&studio.RLoop != 0 {
				v = in*(360.0/256.0) + c.Start
			} else {
				f := qmath.Clamp(0, in/255, 1)
				v = qmath.Lerp(c.Start, c.End, f)
			}
		} else {
			f := min(float32(req.Mouth)/64, 1)
			v = qmath.Lerp(c.Start, c.End, f)
		}
		switch c.Type & studio.Types {
		case studio.XR, studio.YR, studio.ZR:
			adj[j] = v * qmath.DegToRad
		case studio.X, studio.Y, studio.Z:
			adj[j] = v
		}
	}
	return adj
}

type frameData struct {
	pos []vec.Vec3
	q   []quat.Quat
}

func (s *Solver) newFrame() frameData {
	return frameData{
		pos: make([]vec.Vec3, len(s.bones)),
		q:   make([]quat.Quat, len(s.bones)),
	}
}

// calcBones evaluates one blend of a sequence at frame.
func (s *Solver) calcBones(seq, blend int, frame float32, adj []float32) (frameData, error) {
	fd := s.newFrame()
	curves, err := s.m.AnimCurves(seq, blend)
	if err != nil {
		return fd, err
	}
	f := int(frame)
	sf := frame - float32(f)
	for i := range s.bones {
		b := &s.bones[i]
		var ch studio.Channels
		if i < len(curves) {
			ch = curves[i]
		}
		fd.q[i] = boneQuaternion(b, &ch, f, sf, adj)
		fd.pos[i] = bonePosition(b, &ch, f, sf, adj)
	}
	return fd, nil
}

func controllerAdj(b *studio.Bone, c int, adj []float32) float32 {
	if bc := b.BoneController[c]; bc >= 0 && int(bc) < len(adj) {
		return adj[bc]
	}
	return 0
}

func boneQuaternion(b *studio.Bone, ch *studio.Channels, f int, s float32, adj []float32) quat.Quat {
	var a1, a2 vec.Vec3
	for j := 0; j < 3; j++ {
		c := j + 3
		v1, v2 := b.Value[c], b.Value[c]
		if ch[c] != nil {
			r1, r2 := ch[c].Values(f)
			v1 = b.Value[c] + float32(r1)*b.Scale[c]
			v2 = b.Value[c] + float32(r2)*b.Scale[c]
		}
		d := controllerAdj(b, c, adj)
		a1.SetIdx(j, v1+d)
		a2.SetIdx(j, v2+d)
	}
	if vec.Near(a1, a2, equalEpsilon) {
		return quat.FromAngles(a1)
	}
	return quat.Slerp(quat.FromAngles(a1), quat.FromAngles(a2), s)
}

// bonePosition interpolates across a span end like boneQuaternion does.
// Legacy renderers hold the last valid value there instead.
func bonePosition(b *studio.Bone, ch *studio.Channels, f int, s float32, adj []float32) vec.Vec3 {
	var p vec.Vec3
	for j := 0; j < 3; j++ {
		v := b.Value[j]
		if ch[j] != nil {
			v += ch[j].Sample(f, s) * b.Scale[j]
		}
		p.SetIdx(j, v+controllerAdj(b, j, adj))
	}
	return p
}

// slerpBones blends b into a by weight w.
func slerpBones(a, b frameData, w float32) {
	w = qmath.Clamp(0, w, 1)
	for i := range a.q {
		a.q[i] = quat.Slerp(a.q[i], b.q[i], w)
		a.pos[i] = vec.Lerp(a.pos[i], b.pos[i], w)
	}
}

func zeroMotion(sd *studio.SeqDesc, pos []vec.Vec3) {
	mb := int(sd.MotionBone)
	if mb < 0 || mb >= len(pos) {
		return
	}
	if sd.MotionType&studio.X != 0 {
		pos[mb].X = 0
	}
	if sd.MotionType&studio.Y != 0 {
		pos[mb].Y = 0
	}
	if sd.MotionType&studio.Z != 0 {
		pos[mb].Z = 0
	}
}

// sequence evaluates all blends of seq and mixes them by the blender values.
func (s *Solver) sequence(seq int, frame float32, req *Request, adj []float32) (frameData, *studio.SeqDesc, error) {
	sd, err := s.m.Sequence(seq)
	if err != nil {
		return frameData{}, nil, err
	}
	frame = qmath.ClampFrame(frame, int(sd.NumFrames))
	fd, err := s.calcBones(seq, 0, frame, adj)
	if err != nil {
		return fd, nil, err
	}
	if sd.NumBlends > 1 {
		fd2, err := s.calcBones(seq, 1, frame, adj)
		if err != nil {
			return fd, nil, err
		}
		w0 := float32(req.Blenders[0]) / 255
		slerpBones(fd, fd2, w0)
		if sd.NumBlends == 4 {
			fd3, err := s.calcBones(seq, 2, frame, adj)
			if err != nil {
				return fd, nil, err
			}
			fd4, err := s.calcBones(seq, 3, frame, adj)
			if err != nil {
				return fd, nil, err
			}
			slerpBones(fd3, fd4, w0)
			slerpBones(fd, fd3, float32(req.Blenders[1])/255)
		}
	}
	return fd, &sd, nil
}

// Evaluate computes the pose for req. The returned buffers belong to the
// caller.
func (s *Solver) Evaluate(req Request) (*Pose, error) {
	adj := s.boneAdj(&req)
	var fd frameData
	if n := s.m.NumSequences(); n == 0 {
		// bind pose
		fd = s.newFrame()
		var none studio.Channels
		for i := range s.bones {
			fd.q[i] = boneQuaternion(&s.bones[i], &none, 0, 0, adj)
			fd.pos[i] = bonePosition(&s.bones[i], &none, 0, 0, adj)
		}
	} else {
		seq := max(0, min(req.Sequence, n-1))
		var sd *studio.SeqDesc
		var err error
		fd, sd, err = s.sequence(seq, req.Frame, &req, adj)
		if err != nil {
			return nil, err
		}
		if g := req.Gait; g != nil && g.Sequence >= 0 && g.Sequence < n {
			gsd, err := s.m.Sequence(g.Sequence)
			if err != nil {
				return nil, errors.Wrap(err, "gait")
			}
			gf := qmath.FractionFrame(g.Frame, int(gsd.NumFrames))
			gd, _, err := s.sequence(g.Sequence, gf, &req, adj)
			if err != nil {
				return nil, errors.Wrap(err, "gait")
			}
			zeroMotion(&gsd, gd.pos)
			for i := range s.bones {
				if s.lower[i] {
					fd.pos[i] = gd.pos[i]
					fd.q[i] = gd.q[i]
				}
			}
		}
		zeroMotion(sd, fd.pos)
	}

	p := &Pose{
		Positions:  fd.pos,
		Rotations:  fd.q,
		Transforms: make([]matrix.Matrix3x4, len(s.bones)),
	}
	root := matrix.FromQuat(quat.FromAngles(req.Angles.Scale(qmath.DegToRad)))
	for _, i := range s.order {
		local := matrix.FromQuat(fd.q[i])
		local.SetOrigin(fd.pos[i])
		if parent := s.bones[i].Parent; parent == -1 {
			p.Transforms[i] = matrix.Concat(root, local)
		} else {
			p.Transforms[i] = matrix.Concat(p.Transforms[parent], local)
		}
	}
	return p, nil
}

// TransformVertices moves the vertices of a sub-model into the pose.
func (s *Solver) TransformVertices(p *Pose, part, model int) ([]vec.Vec3, error) {
	verts, err := s.m.Vertices(part, model)
	if err != nil {
		return nil, err
	}
	vb, err := s.m.VertexBones(part, model)
	if err != nil {
		return nil, err
	}
	out := make([]vec.Vec3, len(verts))
	for k, v := range verts {
		b := int(vb[k])
		if b >= len(p.Transforms) {
			return nil, errors.Wrapf(studio.ErrInvalidCrossReference, "vertex %d references bone %d", k, b)
		}
		out[k] = p.Transforms[b].Transform(v)
	}
	return out, nil
}

// Bounds returns the box containing the first sub-model of every body part
// over all frames of a sequence. Empty models have a zero box.
func (s *Solver) Bounds(seq int) (mins, maxs vec.Vec3, err error) {
	if s.m.IsEmpty() {
		return mins, maxs, nil
	}
	sd, err := s.m.Sequence(seq)
	if err != nil {
		return mins, maxs, err
	}
	const big = 1e30
	mins = vec.Vec3{X: big, Y: big, Z: big}
	maxs = vec.Vec3{X: -big, Y: -big, Z: -big}
	for f := 0; f < max(int(sd.NumFrames), 1); f++ {
		req := DefaultRequest(seq)
		req.Frame = float32(f)
		p, err := s.Evaluate(req)
		if err != nil {
			return mins, maxs, err
		}
		for b := 0; b < s.m.NumBodyParts(); b++ {
			bp, err := s.m.BodyPart(b)
			if err != nil {
				return mins, maxs, err
			}
			if bp.NumModels < 1 {
				continue
			}
			verts, err := s.TransformVertices(p, b, 0)
			if err != nil {
				return mins, maxs, err
			}
			for _, v := range verts {
				vec.Bounds(&mins, &maxs, v)
			}
		}
	}
	if mins.X > maxs.X {
		return vec.Vec3{}, vec.Vec3{}, nil
	}
	return mins, maxs, nil
}
