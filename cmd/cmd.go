// SPDX-License-Identifier: GPL-2.0-or-later

// Package cmd holds the named commands of the model tool.
package cmd

import (
	"fmt"
	"sort"
	"strings"

	"modelguy/conlog"
)

type Func func(args Arguments) error

type command struct {
	usage string
	f     Func
}

type Commands map[string]command

func New() *Commands {
	c := make(Commands)
	return &c
}

// Add registers f under name. Names are case insensitive.
func (c *Commands) Add(name, usage string, f Func) error {
	ln := strings.ToLower(name)
	if _, ok := (*c)[ln]; ok {
		return fmt.Errorf("command %s already defined", ln)
	}
	(*c)[ln] = command{usage: usage, f: f}
	return nil
}

func (c *Commands) Exists(cmdName string) bool {
	name := strings.ToLower(cmdName)
	_, ok := (*c)[name]
	return ok
}

func (c *Commands) List() []string {
	cmds := make([]string, 0, len(*c))
	for cmd := range *c {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Usage returns the argument synopsis of a command.
func (c *Commands) Usage(cmdName string) string {
	return (*c)[strings.ToLower(cmdName)].usage
}

// Execute runs the command named by the first argument. It reports false if
// there is no such command.
func (c *Commands) Execute(a Arguments) (bool, error) {
	n := a.Args()
	if len(n) == 0 {
		return false, nil
	}
	name := strings.ToLower(n[0].String())
	if cmd, ok := (*c)[name]; ok {
		if err := cmd.f(a); err != nil {
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// PrintList prints the commands starting with part, all if part is empty.
func (c *Commands) PrintList(part string) {
	count := 0
	for _, n := range c.List() {
		if strings.HasPrefix(n, part) {
			conlog.Printf("  %s %s\n", n, c.Usage(n))
			count++
		}
	}
	if part == "" {
		conlog.Printf("%v commands\n", count)
	} else {
		conlog.Printf("%v commands beginning with \"%v\"\n", count, part)
	}
}

var (
	commands = make(Commands)
)

func Must(err error) {
	if err != nil {
		panic(err.Error())
	}
}

func AddCommand(name, usage string, f Func) error {
	return commands.Add(name, usage, f)
}

func Exists(cmdName string) bool {
	return commands.Exists(cmdName)
}

func Execute(a Arguments) (bool, error) {
	return commands.Execute(a)
}

func List() []string {
	return commands.List()
}

func PrintList(part string) {
	commands.PrintList(part)
}

func Usage(cmdName string) string {
	return commands.Usage(cmdName)
}
