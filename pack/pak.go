// SPDX-License-Identifier: GPL-2.0-or-later

// Package pack reads and writes PACK archives.
package pack

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

const (
	entrySize = 64
	nameSize  = 56
)

var magic = []byte("PACK")

type header struct {
	ID     [4]byte
	Offset int32
	Size   int32
}

type entry struct {
	Name   [nameSize]byte
	Offset int32
	Size   int32
}

type Pack struct {
	f     *os.File
	files map[string]*qfile
	name  string
}

type qfile struct {
	offset int64
	size   int64
}

// Open reads the directory of the archive at name.
func Open(name string) (*Pack, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	p := &Pack{f: f, name: name}
	if err := p.init(); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "pack %s", name)
	}
	return p, nil
}

// Open returns a reader of the entry called name.
func (p *Pack) Open(name string) (*io.SectionReader, error) {
	q, ok := p.files[name]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	return io.NewSectionReader(p.f, q.offset, q.size), nil
}

// List returns the sorted entry names.
func (p *Pack) List() []string {
	names := make([]string, 0, len(p.files))
	for n := range p.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *Pack) String() string {
	return p.name
}

func (p *Pack) Close() error {
	return p.f.Close()
}

func (p *Pack) init() error {
	var h header
	if err := binary.Read(p.f, binary.LittleEndian, &h); err != nil {
		return err
	}
	if !bytes.Equal(magic, h.ID[:]) {
		return errors.New("not a pack")
	}
	fi, err := p.f.Stat()
	if err != nil {
		return err
	}
	if h.Offset < 0 || h.Size < 0 || int64(h.Offset)+int64(h.Size) > fi.Size() {
		return errors.Errorf("directory at %d size %d exceeds file size %d", h.Offset, h.Size, fi.Size())
	}
	if _, err := p.f.Seek(int64(h.Offset), io.SeekStart); err != nil {
		return err
	}
	filenum := h.Size / entrySize
	p.files = make(map[string]*qfile, filenum)
	for i := int32(0); i < filenum; i++ {
		var e entry
		if err := binary.Read(p.f, binary.LittleEndian, &e); err != nil {
			return err
		}
		n := bytes.IndexByte(e.Name[:], 0)
		if n < 0 {
			n = len(e.Name)
		}
		name := string(e.Name[:n])
		if p.files[name] != nil {
			return errors.Errorf("file %s in pack is not unique", name)
		}
		if e.Offset < 0 || e.Size < 0 || int64(e.Offset)+int64(e.Size) > fi.Size() {
			return errors.Errorf("file %s exceeds the pack", name)
		}
		p.files[name] = &qfile{
			offset: int64(e.Offset),
			size:   int64(e.Size),
		}
	}
	return nil
}

// Write stores files as an archive, the directory sorted by name.
func Write(w io.Writer, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for n := range files {
		if len(n) >= nameSize {
			return errors.Errorf("name %s too long", n)
		}
		names = append(names, n)
	}
	sort.Strings(names)

	var data bytes.Buffer
	dir := make([]entry, 0, len(names))
	off := int32(binary.Size(header{}))
	for _, n := range names {
		e := entry{Offset: off + int32(data.Len()), Size: int32(len(files[n]))}
		copy(e.Name[:], n)
		dir = append(dir, e)
		data.Write(files[n])
	}
	h := header{
		Offset: off + int32(data.Len()),
		Size:   int32(len(dir) * entrySize),
	}
	copy(h.ID[:], magic)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, dir)
}
