// SPDX-License-Identifier: GPL-2.0-or-later

// Package mstream implements a growable byte buffer with a read/write cursor.
//
// A Stream is the single owner of a model blob. Insert and Remove replace the
// backing array, so any slice previously returned by Bytes must be fetched
// again after a splice.
package mstream

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// ErrOutOfBounds is returned when a cursor operation would leave the buffer.
var ErrOutOfBounds = errors.New("out of bounds")

type Stream struct {
	buf []byte
	pos int
	// eom is set once a read or write ran past the end. Only a successful
	// Seek clears it.
	eom bool
}

// New streams an existing buffer. The stream takes ownership of data.
func New(data []byte) *Stream {
	return &Stream{buf: data}
}

// Len returns the size of the buffer.
func (s *Stream) Len() int {
	return len(s.buf)
}

// Tell returns the cursor offset.
func (s *Stream) Tell() int {
	return s.pos
}

// EOM reports whether a read or write crossed the end of the buffer.
func (s *Stream) EOM() bool {
	return s.eom
}

// Bytes returns the backing buffer. The slice is invalidated by Insert and Remove.
func (s *Stream) Bytes() []byte {
	return s.buf
}

func (s *Stream) advance(n int) (int, error) {
	if s.eom {
		return 0, ErrOutOfBounds
	}
	if n < 0 {
		s.eom = true
		return 0, ErrOutOfBounds
	}
	if s.pos+n > len(s.buf) {
		s.eom = true
		return len(s.buf) - s.pos, ErrOutOfBounds
	}
	return n, nil
}

// Read copies up to len(p) bytes from the cursor. A read crossing the end
// copies what is left, sets the end-of-memory flag and returns ErrOutOfBounds.
func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.advance(len(p))
	copy(p, s.buf[s.pos:s.pos+n])
	s.pos += n
	return n, err
}

// Write overwrites bytes at the cursor. The buffer never grows on Write.
func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.advance(len(p))
	copy(s.buf[s.pos:s.pos+n], p[:n])
	s.pos += n
	return n, err
}

// Skip moves the cursor forward without copying.
func (s *Stream) Skip(n int) (int, error) {
	m, err := s.advance(n)
	s.pos += m
	return m, err
}

// Seek implements io.Seeker. Seeking anywhere in [0, Len()] clears the
// end-of-memory flag, seeking outside sets it.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	var to int64
	switch whence {
	case io.SeekStart:
		to = offset
	case io.SeekCurrent:
		to = int64(s.pos) + offset
	case io.SeekEnd:
		to = int64(len(s.buf)) + offset
	default:
		return int64(s.pos), errors.Errorf("invalid whence %d", whence)
	}
	if to < 0 || to > int64(len(s.buf)) {
		s.eom = true
		return int64(s.pos), errors.Wrapf(ErrOutOfBounds, "seek to %d (size %d)", to, len(s.buf))
	}
	s.pos = int(to)
	s.eom = false
	return to, nil
}

// Insert splices data in at the cursor. The cursor ends up after the
// inserted bytes.
func (s *Stream) Insert(data []byte) {
	n := make([]byte, len(s.buf)+len(data))
	copy(n, s.buf[:s.pos])
	copy(n[s.pos:], data)
	copy(n[s.pos+len(data):], s.buf[s.pos:])
	s.buf = n
	s.pos += len(data)
	s.eom = false
}

// Remove cuts size bytes starting at the cursor. The cursor stays at the
// splice point.
func (s *Stream) Remove(size int) error {
	if size < 0 || s.pos+size > len(s.buf) {
		return errors.Wrapf(ErrOutOfBounds, "remove %d bytes at %d (size %d)", size, s.pos, len(s.buf))
	}
	n := make([]byte, len(s.buf)-size)
	copy(n, s.buf[:s.pos])
	copy(n[s.pos:], s.buf[s.pos+size:])
	s.buf = n
	s.eom = false
	return nil
}

func (s *Stream) ReadInt16() (int16, error) {
	var r int16
	err := binary.Read(s, binary.LittleEndian, &r)
	return r, err
}

func (s *Stream) ReadUint16() (uint16, error) {
	var r uint16
	err := binary.Read(s, binary.LittleEndian, &r)
	return r, err
}

func (s *Stream) ReadInt32() (int32, error) {
	var r int32
	err := binary.Read(s, binary.LittleEndian, &r)
	return r, err
}

func (s *Stream) ReadFloat32() (float32, error) {
	var r float32
	err := binary.Read(s, binary.LittleEndian, &r)
	return r, err
}

func (s *Stream) WriteInt32(v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	_, err := s.Write(b[:])
	return err
}

func (s *Stream) WriteFloat32(v float32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	_, err := s.Write(b[:])
	return err
}
