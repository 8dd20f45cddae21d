// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"modelguy/cmd"
	"modelguy/config"
	"modelguy/conlog"
	"modelguy/filesystem"
	"modelguy/image"
	"modelguy/obj"
	"modelguy/pose"
	"modelguy/studio"
	"modelguy/summary"
)

type tool struct {
	st  studio.Storage
	cfg *config.Config
	out string
	// depth guards nested run commands
	depth int
}

func (t *tool) register() {
	cmd.Must(cmd.AddCommand("validate", "<model>...", t.validate))
	cmd.Must(cmd.AddCommand("info", "<model>", t.info))
	cmd.Must(cmd.AddCommand("merge", "<model> [out]", t.merge))
	cmd.Must(cmd.AddCommand("textures", "<model> [.bmp|.png|.tga|.webp]", t.textures))
	cmd.Must(cmd.AddCommand("pose", "<model> [sequence] [frame]", t.pose))
	cmd.Must(cmd.AddCommand("mesh", "<model> [body] [sequence] [frame]", t.mesh))
	cmd.Must(cmd.AddCommand("run", "<script>", t.run))
	cmd.Must(cmd.AddCommand("help", "[prefix]", func(a cmd.Arguments) error {
		cmd.PrintList(a.Argv(1).String())
		return nil
	}))
}

func need(a cmd.Arguments, n int) error {
	if len(a.Args()) < n+1 {
		return errors.Errorf("missing arguments, usage: %s %s", a.Argv(0), cmd.Usage(a.Argv(0).String()))
	}
	return nil
}

// load reads a model with its companion files. Missing companions are
// reported and leave the model usable.
func (t *tool) load(name string) (*studio.Model, error) {
	m, err := studio.Load(t.st, name)
	if err != nil {
		return nil, err
	}
	if err := m.LoadExternalTextures(t.st); err != nil {
		conlog.Warnf("%v\n", err)
	}
	if m.HasExternalSequences() {
		if err := m.LoadSequenceGroups(t.st); err != nil {
			conlog.Warnf("%v\n", err)
		}
	}
	return m, nil
}

// output returns the storage receiving generated files.
func (t *tool) output() studio.Storage {
	if t.out != "" {
		return filesystem.NewDir(t.out)
	}
	return t.st
}

func (t *tool) validate(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	failed := 0
	for _, arg := range a.Args()[1:] {
		name := arg.String()
		err := func() error {
			m, err := studio.Load(t.st, name)
			if err != nil {
				return err
			}
			if err := m.LoadExternalTextures(t.st); err != nil {
				return err
			}
			return m.LoadSequenceGroups(t.st)
		}()
		if err != nil {
			conlog.Printf("%s: %v\n", name, err)
			failed++
			continue
		}
		conlog.Printf("%s: ok\n", name)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d models invalid", failed, len(a.Args())-1)
	}
	return nil
}

func (t *tool) info(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	m, err := t.load(a.Argv(1).String())
	if err != nil {
		return err
	}
	s, err := summary.Build(m)
	if err != nil {
		return err
	}
	b, err := summary.JSON(s)
	if err != nil {
		return err
	}
	conlog.Printf("%s\n", b)
	return nil
}

func (t *tool) merge(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	name := a.Argv(1).String()
	m, err := studio.Load(t.st, name)
	if err != nil {
		return err
	}
	if err := m.MergeExternal(t.st); err != nil {
		return err
	}
	out := name
	if len(a.Args()) > 2 {
		out = a.Argv(2).String()
	}
	st := t.st
	if t.out != "" {
		st = filesystem.NewDir(t.out)
		out = filepath.Base(out)
	}
	if err := m.Save(st, out); err != nil {
		return err
	}
	conlog.Printf("%s: merged into %s (%d bytes)\n", name, out, m.Len())
	return nil
}

func textureFileName(model, texture, ext string) string {
	base := path.Base(filesystem.StripExt(strings.ReplaceAll(model, `\`, "/")))
	tex := filesystem.StripExt(texture)
	return fmt.Sprintf("%s_%s%s", base, tex, ext)
}

func (t *tool) textures(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	name := a.Argv(1).String()
	ext := ".bmp"
	if len(a.Args()) > 2 {
		ext = a.Argv(2).String()
	}
	m, err := t.load(name)
	if err != nil {
		return err
	}
	out := t.output()
	for i := 0; i < m.NumTextures(); i++ {
		tex, err := m.Texture(i)
		if err != nil {
			return err
		}
		img, err := m.TextureImage(i)
		if err != nil {
			return errors.Wrapf(err, "texture %s", tex.TextureName())
		}
		fn := textureFileName(name, tex.TextureName(), ext)
		if err := image.Write(out, fn, img); err != nil {
			return err
		}
		if err := image.Verify(out, fn, img); err != nil {
			return err
		}
		conlog.Printf("%s\n", fn)
	}
	return nil
}

// request parses the optional sequence and frame arguments starting at
// argument i.
func (t *tool) request(a cmd.Arguments, i int) (pose.Request, error) {
	seq, frame := 0, float32(0)
	var err error
	if len(a.Args()) > i {
		if seq, err = a.Argv(i).IntE(); err != nil {
			return pose.Request{}, errors.Wrap(err, "sequence")
		}
	}
	if len(a.Args()) > i+1 {
		if frame, err = a.Argv(i + 1).Float32E(); err != nil {
			return pose.Request{}, errors.Wrap(err, "frame")
		}
	}
	return t.cfg.Request(seq, frame), nil
}

func (t *tool) solve(a cmd.Arguments, i int) (*studio.Model, *pose.Solver, *pose.Pose, error) {
	m, err := t.load(a.Argv(1).String())
	if err != nil {
		return nil, nil, nil, err
	}
	req, err := t.request(a, i)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := pose.NewSolver(m, t.cfg.SolverOptions()...)
	if err != nil {
		return nil, nil, nil, err
	}
	p, err := s.Evaluate(req)
	if err != nil {
		return nil, nil, nil, err
	}
	return m, s, p, nil
}

func (t *tool) pose(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	m, s, p, err := t.solve(a, 2)
	if err != nil {
		return err
	}
	for i := 0; i < s.NumBones(); i++ {
		b, err := m.Bone(i)
		if err != nil {
			return err
		}
		o := p.Transforms[i].Origin()
		part := "upper"
		if s.Lower(i) {
			part = "lower"
		}
		conlog.Printf("%3d %-24s %s %10.4f %10.4f %10.4f\n", i, b.BoneName(), part, o.X, o.Y, o.Z)
	}
	return nil
}

func (t *tool) mesh(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	body := 0
	if len(a.Args()) > 2 {
		var err error
		if body, err = a.Argv(2).IntE(); err != nil {
			return errors.Wrap(err, "body")
		}
	}
	m, s, p, err := t.solve(a, 3)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	if err := obj.Write(&b, m, s, p, body); err != nil {
		return err
	}
	if t.out == "" {
		conlog.Printf("%s", b.Bytes())
		return nil
	}
	return filesystem.NewDir(".").WriteFile(t.out, b.Bytes())
}

const maxRunDepth = 8

// run executes a script with one command per line.
func (t *tool) run(a cmd.Arguments) error {
	if err := need(a, 1); err != nil {
		return err
	}
	if t.depth >= maxRunDepth {
		return errors.New("run: scripts nested too deep")
	}
	data, err := filesystem.NewDir(".").ReadFile(a.Argv(1).String())
	if err != nil {
		return err
	}
	t.depth++
	defer func() { t.depth-- }()
	sc := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; sc.Scan(); line++ {
		args := cmd.Parse(sc.Text())
		if len(args.Args()) == 0 || strings.HasPrefix(args.Full(), "#") {
			continue
		}
		ok, err := cmd.Execute(args)
		if !ok && err == nil {
			return errors.Errorf("%s:%d: unknown command %q", a.Argv(1), line, args.Argv(0))
		}
		if err != nil {
			return errors.Wrapf(err, "%s:%d", a.Argv(1), line)
		}
	}
	return sc.Err()
}
