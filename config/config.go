// SPDX-License-Identifier: GPL-2.0-or-later

// Package config reads the optional TOML settings of the model tool.
package config

import (
	"bytes"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"modelguy/conlog"
	"modelguy/pose"
)

const DefaultFile = "~/.modelguy.toml"

type Pose struct {
	Controllers []int `toml:"controllers"`
	Mouth       int   `toml:"mouth"`
	Blenders    []int `toml:"blenders"`
	// GaitSequence is negative for no gait.
	GaitSequence int     `toml:"gait_sequence"`
	// GaitFrame is a fraction of the gait sequence in [0, 1].
	GaitFrame    float32 `toml:"gait_frame"`
	Spine        string  `toml:"spine"`
	Pelvis       string  `toml:"pelvis"`
}

type Config struct {
	BaseDir string `toml:"basedir"`
	Game    string `toml:"game"`
	// Search lists extra directories searched after the game directories.
	Search []string `toml:"search"`
	Pose   Pose     `toml:"pose"`
}

func Default() *Config {
	return &Config{
		Pose: Pose{
			Controllers:  []int{127, 127, 127, 127},
			GaitSequence: -1,
			Spine:        pose.DefaultSpine,
			Pelvis:       pose.DefaultPelvis,
		},
	}
}

// Load reads name over the defaults. An empty name reads DefaultFile if
// it exists.
func Load(name string) (*Config, error) {
	c := Default()
	optional := name == ""
	if optional {
		name = DefaultFile
	}
	path, err := homedir.Expand(name)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return c, nil
		}
		return nil, errors.Wrap(err, "config")
	}
	if err := c.decode(data); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	conlog.DPrintf("read config %s\n", path)
	return c, nil
}

func (c *Config) decode(data []byte) error {
	d := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		return err
	}
	var err error
	if c.BaseDir, err = homedir.Expand(c.BaseDir); err != nil {
		return err
	}
	for i, s := range c.Search {
		if c.Search[i], err = homedir.Expand(s); err != nil {
			return err
		}
	}
	if len(c.Pose.Controllers) > 4 {
		return errors.Errorf("%d controllers, at most 4", len(c.Pose.Controllers))
	}
	if len(c.Pose.Blenders) > 2 {
		return errors.Errorf("%d blenders, at most 2", len(c.Pose.Blenders))
	}
	return nil
}

func byteValue(v int) uint8 {
	return uint8(max(0, min(v, 255)))
}

// Request returns the evaluation request for frame of seq.
func (c *Config) Request(seq int, frame float32) pose.Request {
	r := pose.DefaultRequest(seq)
	r.Frame = frame
	for i, v := range c.Pose.Controllers {
		r.Controllers[i] = byteValue(v)
	}
	for i, v := range c.Pose.Blenders {
		r.Blenders[i] = byteValue(v)
	}
	r.Mouth = byteValue(c.Pose.Mouth)
	if c.Pose.GaitSequence >= 0 {
		r.Gait = &pose.Gait{Sequence: c.Pose.GaitSequence, Frame: c.Pose.GaitFrame}
	}
	return r
}

func (c *Config) SolverOptions() []pose.Option {
	if c.Pose.Spine == "" && c.Pose.Pelvis == "" {
		return nil
	}
	return []pose.Option{pose.WithGaitAnchors(c.Pose.Spine, c.Pose.Pelvis)}
}
