// SPDX-License-Identifier: GPL-2.0-or-later

package pose_test

import (
	"sync"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelguy/internal/studiotest"
	"modelguy/math/vec"
	"modelguy/pose"
	"modelguy/studio"
)

const delta = 1e-4

var unit = [6]float32{1, 1, 1, 1, 1, 1}

func solver(t *testing.T, sm *studiotest.Model, opts ...pose.Option) *pose.Solver {
	t.Helper()
	m := studio.New(sm.Name, sm.Build())
	require.NoError(t, m.Validate())
	s, err := pose.NewSolver(m, opts...)
	require.NoError(t, err)
	return s
}

func assertVec(t *testing.T, want, got vec.Vec3, msg string) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, msg+" x")
	assert.InDelta(t, want.Y, got.Y, delta, msg+" y")
	assert.InDelta(t, want.Z, got.Z, delta, msg+" z")
}

// constant returns a curve holding v for n frames.
func constant(n int, v int16) []int16 {
	return studiotest.Span(n, v)
}

func TestEvaluateInterpolates(t *testing.T) {
	s := solver(t, studiotest.Simple("a.mdl"))
	tests := []struct {
		frame float32
		want  float32
	}{
		{0, 10},
		{1, 20},
		{0.5, 15},
		{7, 20}, // clamped to the last frame
		{-3, 10},
		{math32.NaN(), 10},
	}
	for i, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Frame = tc.frame
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, p.Positions[0].X, delta, "testcase %d", i)
	}
}

func TestPositionAcrossSpanEnd(t *testing.T) {
	sm := studiotest.Simple("a.mdl")
	sm.Sequences[0].Curves[0][0][0] = studiotest.Curve(studiotest.Span(1, 10), studiotest.Span(1, 20))
	s := solver(t, sm)
	req := pose.DefaultRequest(0)
	req.Frame = 0.5
	p, err := s.Evaluate(req)
	require.NoError(t, err)
	// blends into the next span's first value
	assert.InDelta(t, 15, p.Positions[0].X, delta)
}

func TestEvaluateHierarchy(t *testing.T) {
	s := solver(t, studiotest.Simple("a.mdl"))
	p, err := s.Evaluate(pose.DefaultRequest(0))
	require.NoError(t, err)
	assertVec(t, vec.Vec3{X: 10}, p.Transforms[0].Origin(), "root")
	assertVec(t, vec.Vec3{X: 11}, p.Transforms[1].Origin(), "child")

	req := pose.DefaultRequest(0)
	req.Angles = vec.Vec3{Z: 90}
	p, err = s.Evaluate(req)
	require.NoError(t, err)
	assertVec(t, vec.Vec3{Y: 10}, p.Transforms[0].Origin(), "rotated root")
	assertVec(t, vec.Vec3{Y: 11}, p.Transforms[1].Origin(), "rotated child")
}

func TestEvaluateBindPose(t *testing.T) {
	sm := studiotest.Simple("a.mdl")
	sm.Sequences = nil
	s := solver(t, sm)
	p, err := s.Evaluate(pose.DefaultRequest(3))
	require.NoError(t, err)
	assertVec(t, vec.Vec3{}, p.Positions[0], "root")
	assertVec(t, vec.Vec3{X: 1}, p.Transforms[1].Origin(), "child")
}

func controllerModel(channel, typ int, start, end float32, index int) *studiotest.Model {
	bind := []int{-1, -1, -1, -1, -1, -1}
	bind[channel] = 0
	return &studiotest.Model{
		Name: "c.mdl",
		Bones: []studiotest.Bone{
			{Name: "root", Parent: -1, Scale: unit, Controllers: bind},
			{Name: "child", Parent: 0, Value: [6]float32{1}, Scale: unit},
		},
		Controllers: []studiotest.Controller{{Bone: 0, Type: typ, Start: start, End: end, Index: index}},
		Sequences:   []studiotest.Sequence{{Label: "idle", NumFrames: 1}},
	}
}

func TestControllerRotation(t *testing.T) {
	s := solver(t, controllerModel(5, studio.ZR, -90, 90, 0))
	tests := []struct {
		in   uint8
		want vec.Vec3
	}{
		{255, vec.Vec3{Y: 1}},
		{0, vec.Vec3{Y: -1}},
	}
	for i, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Controllers[0] = tc.in
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, 0, p.Positions[0].X, delta, "testcase %d", i)
		assertVec(t, tc.want, p.Transforms[1].Origin(), "child")
	}
}

func TestControllerLoop(t *testing.T) {
	s := solver(t, controllerModel(5, studio.ZR|studio.RLoop, 0, 360, 2))
	req := pose.DefaultRequest(0)
	req.Controllers[2] = 64
	p, err := s.Evaluate(req)
	require.NoError(t, err)
	assertVec(t, vec.Vec3{Y: 1}, p.Transforms[1].Origin(), "quarter turn")
}

func TestControllerMouth(t *testing.T) {
	s := solver(t, controllerModel(0, studio.X, 0, 8, studio.MouthController))
	tests := []struct {
		mouth uint8
		want  float32
	}{
		{0, 0},
		{32, 4},
		{64, 8},
		{200, 8},
	}
	for i, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Mouth = tc.mouth
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, p.Positions[0].X, delta, "testcase %d", i)
	}
}

func blendModel(values ...int16) *studiotest.Model {
	sm := &studiotest.Model{
		Name:  "b.mdl",
		Bones: []studiotest.Bone{{Name: "root", Parent: -1, Scale: unit}},
		Sequences: []studiotest.Sequence{{
			Label:     "aim",
			NumFrames: 1,
			NumBlends: len(values),
		}},
	}
	for _, v := range values {
		sm.Sequences[0].Curves = append(sm.Sequences[0].Curves,
			[][studio.NumChannels][]int16{{constant(1, v)}})
	}
	return sm
}

func TestBlendTwo(t *testing.T) {
	s := solver(t, blendModel(0, 10))
	tests := []struct {
		b0   uint8
		want float32
	}{
		{0, 0},
		{51, 2},
		{255, 10},
	}
	for i, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Blenders[0] = tc.b0
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, p.Positions[0].X, delta, "testcase %d", i)
	}
}

func TestBlendFour(t *testing.T) {
	s := solver(t, blendModel(0, 10, 20, 40))
	tests := []struct {
		b0, b1 uint8
		want   float32
	}{
		{0, 0, 0},
		{255, 0, 10},
		{0, 255, 20},
		{255, 255, 40},
	}
	for i, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Blenders = [2]uint8{tc.b0, tc.b1}
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, p.Positions[0].X, delta, "testcase %d", i)
	}
}

func TestMotionExtraction(t *testing.T) {
	sm := studiotest.Simple("a.mdl")
	sm.Sequences[0].MotionType = studio.X
	s := solver(t, sm)
	req := pose.DefaultRequest(0)
	req.Frame = 1
	p, err := s.Evaluate(req)
	require.NoError(t, err)
	assert.InDelta(t, 0, p.Positions[0].X, delta)
	assert.InDelta(t, 1, p.Positions[1].X, delta, "only the motion bone is zeroed")
}

func gaitModel(names ...string) *studiotest.Model {
	parents := []int{-1, 0, 1, 2, 1}
	sm := &studiotest.Model{Name: "g.mdl"}
	upper := [][studio.NumChannels][]int16{}
	lower := [][studio.NumChannels][]int16{}
	for i, n := range names {
		sm.Bones = append(sm.Bones, studiotest.Bone{Name: n, Parent: parents[i], Scale: unit})
		upper = append(upper, [studio.NumChannels][]int16{constant(1, 1)})
		lower = append(lower, [studio.NumChannels][]int16{constant(1, 5)})
	}
	sm.Sequences = []studiotest.Sequence{
		{Label: "shoot", NumFrames: 1, Curves: [][][studio.NumChannels][]int16{upper}},
		{Label: "run", NumFrames: 1, MotionType: studio.X, Curves: [][][studio.NumChannels][]int16{lower}},
	}
	return sm
}

func TestGait(t *testing.T) {
	s := solver(t, gaitModel("Bip01", "Bip01 Pelvis", "Bip01 Spine", "Bip01 Spine1", "Bip01 L Thigh"))
	wantLower := []bool{true, true, false, false, true}
	for i, w := range wantLower {
		assert.Equal(t, w, s.Lower(i), "bone %d", i)
	}
	assert.False(t, s.Lower(-1))
	assert.False(t, s.Lower(5))

	req := pose.DefaultRequest(0)
	req.Gait = &pose.Gait{Sequence: 1}
	p, err := s.Evaluate(req)
	require.NoError(t, err)
	// the gait sequence extracts X motion of bone 0
	want := []float32{0, 5, 1, 1, 5}
	for i, w := range want {
		assert.InDelta(t, w, p.Positions[i].X, delta, "bone %d", i)
	}

	req.Gait = nil
	p, err = s.Evaluate(req)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, 1, p.Positions[i].X, delta, "bone %d without gait", i)
	}
}

func TestGaitFrameIsFraction(t *testing.T) {
	sm := gaitModel("Bip01", "Bip01 Pelvis", "Bip01 Spine", "Bip01 Spine1", "Bip01 L Thigh")
	run := &sm.Sequences[1]
	run.NumFrames = 3
	for i := range run.Curves[0] {
		run.Curves[0][i][0] = studiotest.Span(3, 0, 10, 20)
	}
	s := solver(t, sm)
	tests := []struct {
		frame float32
		want  float32
	}{
		{0, 0},
		{0.25, 5},
		{0.5, 10},
		{1, 20},
		{2, 20},
		{-1, 0},
		{math32.NaN(), 0},
	}
	for _, tc := range tests {
		req := pose.DefaultRequest(0)
		req.Gait = &pose.Gait{Sequence: 1, Frame: tc.frame}
		p, err := s.Evaluate(req)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, p.Positions[4].X, delta, "thigh at gait frame %v", tc.frame)
		assert.InDelta(t, 1, p.Positions[2].X, delta, "spine at gait frame %v", tc.frame)
	}
}

func TestGaitWithoutAnchors(t *testing.T) {
	s := solver(t, gaitModel("a", "b", "c", "d", "e"))
	req := pose.DefaultRequest(0)
	req.Gait = &pose.Gait{Sequence: 1}
	p, err := s.Evaluate(req)
	require.NoError(t, err)
	for i := 0; i < s.NumBones(); i++ {
		assert.False(t, s.Lower(i))
		assert.InDelta(t, 1, p.Positions[i].X, delta, "bone %d", i)
	}

	s = solver(t, gaitModel("a", "hips", "torso", "d", "e"), pose.WithGaitAnchors("torso", "hips"))
	assert.True(t, s.Lower(1))
	assert.False(t, s.Lower(3))
}

func TestTransformVertices(t *testing.T) {
	s := solver(t, studiotest.Simple("a.mdl"))
	p, err := s.Evaluate(pose.DefaultRequest(0))
	require.NoError(t, err)
	verts, err := s.TransformVertices(p, 0, 0)
	require.NoError(t, err)
	require.Len(t, verts, 4)
	assertVec(t, vec.Vec3{X: 11, Y: 1}, verts[3], "vertex 3")

	_, err = s.TransformVertices(p, 1, 0)
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	s := solver(t, studiotest.Simple("a.mdl"))
	mins, maxs, err := s.Bounds(0)
	require.NoError(t, err)
	assertVec(t, vec.Vec3{X: 10}, mins, "mins")
	assertVec(t, vec.Vec3{X: 21, Y: 1}, maxs, "maxs")

	sm := studiotest.Simple("a.mdl")
	sm.BodyParts = nil
	s = solver(t, sm)
	mins, maxs, err = s.Bounds(0)
	require.NoError(t, err)
	assert.Equal(t, vec.Vec3{}, mins)
	assert.Equal(t, vec.Vec3{}, maxs)
}

func TestEvaluateConcurrent(t *testing.T) {
	s := solver(t, studiotest.Simple("a.mdl"))
	want, err := s.Evaluate(pose.DefaultRequest(0))
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := s.Evaluate(pose.DefaultRequest(0))
			if assert.NoError(t, err) {
				assert.Equal(t, want.Positions, p.Positions)
			}
		}()
	}
	wg.Wait()
}
