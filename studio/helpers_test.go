// SPDX-License-Identifier: GPL-2.0-or-later

package studio_test

import (
	"fmt"
	"log"

	"modelguy/conlog"
)

// captureWarnings collects conlog warnings until the returned func is called.
func captureWarnings(out *[]string) func() {
	conlog.SetWarnf(func(format string, v ...interface{}) {
		*out = append(*out, fmt.Sprintf(format, v...))
	})
	return func() {
		conlog.SetWarnf(func(format string, v ...interface{}) {
			log.Printf("WARNING: "+format, v...)
		})
	}
}
