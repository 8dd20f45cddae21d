// SPDX-License-Identifier: GPL-2.0-or-later

package cmd

import (
	"strconv"
	"strings"
	"unicode"

	"modelguy/conlog"
)

type QArg struct {
	a string
}

func (a QArg) String() string {
	return a.a
}

func (a QArg) Int() int {
	r, err := strconv.ParseInt(a.a, 10, 0)
	if err != nil {
		return 0
	}
	return int(r)
}

// IntE is Int reporting malformed numbers.
func (a QArg) IntE() (int, error) {
	r, err := strconv.ParseInt(a.a, 10, 0)
	return int(r), err
}

// Float32E is Float32 reporting malformed numbers.
func (a QArg) Float32E() (float32, error) {
	r, err := strconv.ParseFloat(a.a, 32)
	return float32(r), err
}

func (a QArg) Float32() float32 {
	r, err := strconv.ParseFloat(a.a, 32)
	if err != nil {
		return 0
	}
	return float32(r)
}

type Arguments struct {
	// each arg on its own
	args []QArg
	// the trimmed command line
	full string
}

func (c *Arguments) Argv(i int) QArg {
	if i < 0 || i >= len(c.args) {
		conlog.DPrintf("argument %v out of bounds (%v)\n", i, len(c.args))
		return QArg{""}
	}
	return c.args[i]
}

func (c *Arguments) Full() string {
	return c.full
}

func (c *Arguments) Args() []QArg {
	return c.args
}

func (c *Arguments) ArgumentString() string {
	// args[0] is the cmd
	if len(c.args) < 2 {
		return ""
	}
	r := strings.TrimPrefix(c.full, c.args[0].String())
	r = strings.TrimLeftFunc(r, unicode.IsSpace)
	// we want to remove " around the text.
	// the end is not that important but the result should not start with " or
	// space.
	if len(r) > 1 {
		if r[0] == '"' {
			r = strings.Trim(r, "\"\t\n\v\f\r ")
		}
	}
	return r
}

// FromArgs builds arguments from an already split command line.
func FromArgs(a []string) (args Arguments) {
	args.args = make([]QArg, 0, len(a))
	quoted := make([]string, 0, len(a))
	for _, s := range a {
		args.args = append(args.args, QArg{s})
		if s == "" || strings.ContainsFunc(s, unicode.IsSpace) {
			s = strconv.Quote(s)
		}
		quoted = append(quoted, s)
	}
	args.full = strings.Join(quoted, " ")
	return args
}

// Parse splits a command line. Double quotes group words, // starts a
// comment and a line break ends the command.
func Parse(s string) (args Arguments) {
	args.full = strings.TrimFunc(s, unicode.IsSpace)
	args.args = []QArg{}

	in := args.full
	if i := strings.IndexAny(in, "\r\n"); i >= 0 {
		in = in[:i]
	}
	for {
		in = strings.TrimLeft(in, " \t")
		switch {
		case in == "" || strings.HasPrefix(in, "//"):
			return
		case in[0] == '"':
			end := strings.IndexByte(in[1:], '"')
			if end < 0 {
				conlog.Warnf("parse %q: unterminated string\n", args.full)
				return
			}
			args.args = append(args.args, QArg{in[1 : end+1]})
			in = in[end+2:]
		default:
			end := strings.IndexAny(in, " \t\"")
			if end < 0 {
				end = len(in)
			}
			args.args = append(args.args, QArg{in[:end]})
			in = in[end:]
		}
	}
}
