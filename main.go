// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"modelguy/cmd"
	"modelguy/commandline"
	"modelguy/config"
	"modelguy/conlog"
	"modelguy/filesystem"
	"modelguy/studio"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] command [arguments]\n\ncommands:\n", filepath.Base(os.Args[0]))
	cmd.PrintList("")
	fmt.Fprintln(flag.CommandLine.Output(), "\nflags:")
	flag.PrintDefaults()
}

// storage builds the search path from the flags and the configuration.
func storage(c *config.Config) (studio.Storage, func(), error) {
	base := commandline.BaseDirectory()
	if base == "" {
		base = c.BaseDir
	}
	game := commandline.Game()
	if game == "" {
		game = c.Game
	}
	if base == "" && len(c.Search) == 0 {
		return filesystem.NewDir("."), func() {}, nil
	}
	dirs := append([]string(nil), c.Search...)
	if base != "" {
		dirs = append(dirs, base)
		if game != "" {
			dirs = append(dirs, filepath.Join(base, game))
		}
	}
	s, err := filesystem.NewSearch(dirs...)
	if err != nil {
		return nil, nil, err
	}
	return s, func() { s.Close() }, nil
}

func main() {
	log.SetFlags(0)
	conlog.SetPrintf(func(format string, v ...interface{}) {
		fmt.Fprintf(os.Stdout, format, v...)
	})
	flag.Usage = usage
	flag.Parse()
	conlog.SetDebug(commandline.ConsoleDebug())

	c, err := config.Load(commandline.ConfigFile())
	if err != nil {
		log.Fatal(err)
	}
	st, done, err := storage(c)
	if err != nil {
		log.Fatal(err)
	}
	defer done()

	t := &tool{st: st, cfg: c, out: commandline.Out()}
	t.register()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	ok, err := cmd.Execute(cmd.FromArgs(flag.Args()))
	if !ok && err == nil {
		log.Printf("unknown command %q", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Printf("%s: %v", flag.Arg(0), err)
		done()
		os.Exit(1)
	}
}
