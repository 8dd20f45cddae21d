// SPDX-License-Identifier: GPL-2.0-or-later

// Package filesystem provides the model storages: a plain directory and a
// search path of directories and pack archives.
package filesystem

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/tools/godoc/vfs"

	"modelguy/conlog"
	"modelguy/pack"
)

// Dir stores files below a directory. Absolute names bypass the root.
type Dir struct {
	root string
}

func NewDir(root string) *Dir {
	return &Dir{root: root}
}

func (d *Dir) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *Dir) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.path(name))
}

// WriteFile replaces name atomically: the data goes to a temporary file in
// the destination directory which is then renamed.
func (d *Dir) WriteFile(name string, data []byte) error {
	dst := d.path(name)
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s", filepath.Base(dst), uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", name)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "write %s", name)
	}
	conlog.DPrintf("wrote %s (%d bytes)\n", dst, len(data))
	return nil
}

func (d *Dir) Exists(name string) bool {
	fi, err := os.Stat(d.path(name))
	return err == nil && !fi.IsDir()
}

func (d *Dir) String() string {
	return d.root
}

type packFileSystem struct {
	p *pack.Pack
}

type closer struct {
	*io.SectionReader
}

func (*closer) Close() error {
	return nil
}

type fileInfo struct {
	name string // base name of the file
	size int64  // length in bytes for regular files; system-dependent for others
}

func (f *fileInfo) Name() string {
	return f.name
}
func (f *fileInfo) Size() int64 {
	return f.size
}
func (f *fileInfo) Mode() fs.FileMode {
	return 0444
}
func (f *fileInfo) ModTime() time.Time {
	return time.Time{}
}
func (f *fileInfo) IsDir() bool {
	return false
}
func (f *fileInfo) Sys() any {
	return nil
}

func (p packFileSystem) Open(name string) (vfs.ReadSeekCloser, error) {
	// inside a pack file there is no 'root'. all files are relative to '.'
	name = strings.TrimPrefix(name, "/")
	f, err := p.p.Open(name)
	if err != nil {
		return nil, err
	}
	return &closer{f}, nil
}

func (p packFileSystem) Stat(name string) (os.FileInfo, error) {
	name = strings.TrimPrefix(name, "/")
	f, err := p.p.Open(name)
	if err != nil {
		return nil, err
	}
	return &fileInfo{
		name: path.Base(name),
		size: f.Size(),
	}, nil
}

func (p packFileSystem) Lstat(name string) (os.FileInfo, error) {
	return p.Stat(name)
}

// ReadDir lists the entries directly below dir.
func (p packFileSystem) ReadDir(dir string) ([]os.FileInfo, error) {
	dir = strings.Trim(dir, "/")
	var out []os.FileInfo
	for _, n := range p.p.List() {
		d := path.Dir(n)
		if d == "." {
			d = ""
		}
		if d != dir {
			continue
		}
		fi, err := p.Stat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, fi)
	}
	return out, nil
}

func (p packFileSystem) RootType(string) vfs.RootType {
	return ""
}

func (p packFileSystem) String() string {
	return p.p.String()
}

// Search looks files up in an ordered set of directories and the pack
// archives inside them. Writes go to the directory added last.
type Search struct {
	mu    sync.RWMutex
	ns    vfs.NameSpace
	dirs  []*Dir
	packs []*pack.Pack
}

func NewSearch(dirs ...string) (*Search, error) {
	s := &Search{ns: vfs.NameSpace{}}
	for _, d := range dirs {
		if err := s.AddDir(d); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// AddDir puts dir in front of the search path. Archives pak0.pak, pak1.pak
// and so on shadow the loose files of dir, higher numbers first.
func (s *Search) AddDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(err, "search path")
	}
	if !fi.IsDir() {
		return errors.Errorf("search path: %s is not a directory", dir)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mode := vfs.BindBefore
	if len(s.dirs) == 0 {
		mode = vfs.BindReplace
	}
	s.ns.Bind("/", vfs.OS(dir), "/", mode)
	s.dirs = append([]*Dir{NewDir(dir)}, s.dirs...)
	s.useDir(dir)
	return nil
}

func (s *Search) useDir(dir string) {
	for i := 0; ; i++ {
		pfp := filepath.Join(dir, fmt.Sprintf("pak%d.pak", i))
		p, err := pack.Open(pfp)
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				conlog.Warnf("skipping %s: %v\n", pfp, err)
			}
			break
		}
		conlog.DPrintf("added pack %s (%d files)\n", pfp, len(p.List()))
		s.packs = append(s.packs, p)
		s.ns.Bind("/", packFileSystem{p}, "/", vfs.BindBefore)
	}
}

func clean(name string) string {
	return path.Join("/", filepath.ToSlash(name))
}

func (s *Search) ReadFile(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vfs.ReadFile(s.ns, clean(name))
}

func (s *Search) WriteFile(name string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.dirs) == 0 {
		return errors.Errorf("write %s: empty search path", name)
	}
	return s.dirs[0].WriteFile(name, data)
}

func (s *Search) Exists(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fi, err := s.ns.Stat(clean(name))
	return err == nil && !fi.IsDir()
}

// Close releases the pack archives.
func (s *Search) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, p := range s.packs {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.packs = nil
	s.ns = vfs.NameSpace{}
	s.dirs = nil
	return first
}

func isSep(c uint8) bool {
	return c == '/' || c == '\\'
}

func Ext(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

func StripExt(path string) string {
	for i := len(path) - 1; i >= 0 && !isSep(path[i]); i-- {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
