// SPDX-License-Identifier: GPL-2.0-or-later

// Package conlog routes diagnostics of the model engine to a replaceable sink.
package conlog

import (
	"log"
	"sync"
)

var (
	mu    sync.RWMutex
	p     = log.Printf
	w     = func(format string, v ...interface{}) { log.Printf("WARNING: "+format, v...) }
	debug bool
)

func SetPrintf(f func(string, ...interface{})) {
	mu.Lock()
	defer mu.Unlock()
	p = f
}

func SetWarnf(f func(string, ...interface{})) {
	mu.Lock()
	defer mu.Unlock()
	w = f
}

// SetDebug enables DPrintf output.
func SetDebug(b bool) {
	mu.Lock()
	defer mu.Unlock()
	debug = b
}

func Printf(format string, v ...interface{}) {
	mu.RLock()
	f := p
	mu.RUnlock()
	f(format, v...)
}

func Warnf(format string, v ...interface{}) {
	mu.RLock()
	f := w
	mu.RUnlock()
	f(format, v...)
}

func DPrintf(format string, v ...interface{}) {
	mu.RLock()
	f, d := p, debug
	mu.RUnlock()
	if d {
		f(format, v...)
	}
}
