// SPDX-License-Identifier: GPL-2.0-or-later

package commandline

import (
	"flag"
)

var (
	conDebug bool

	configFile string
	basedir    string
	game       string
	out        string
)

// Register adds the tool flags to fs.
func Register(fs *flag.FlagSet) {
	fs.BoolVar(&conDebug, "debug", false, "enable debug output")
	fs.StringVar(&configFile, "config", "", "TOML configuration file, default ~/.modelguy.toml")
	fs.StringVar(&basedir, "basedir", "", "search models below this directory and its pak files")
	fs.StringVar(&game, "game", "", "game directory inside basedir searched before basedir")
	fs.StringVar(&out, "out", "", "output file or directory")
}

func init() {
	Register(flag.CommandLine)
}

func ConsoleDebug() bool {
	return conDebug
}

func ConfigFile() string {
	return configFile
}

func BaseDirectory() string {
	return basedir
}

func Game() string {
	return game
}

func Out() string {
	return out
}
