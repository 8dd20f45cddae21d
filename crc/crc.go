// SPDX-License-Identifier: GPL-2.0-or-later

// Package crc computes the CRC-16/CCITT-FALSE checksum of model blobs and
// texture data.
package crc

import "hash"

const (
	poly    = 0x1021
	initial = 0xffff
	// Size of a checksum in bytes.
	Size = 2
)

var table [256]uint16

func init() {
	for i := range table {
		c := uint16(i) << 8
		for range 8 {
			hi := c & 0x8000
			c <<= 1
			if hi != 0 {
				c ^= poly
			}
		}
		table[i] = c
	}
}

func update(c uint16, p []byte) uint16 {
	for _, b := range p {
		c = c<<8 ^ table[byte(c>>8)^b]
	}
	return c
}

// Checksum returns the checksum of p.
func Checksum(p []byte) uint16 {
	return update(initial, p)
}

// Digest accumulates a checksum over several writes. It implements hash.Hash.
type Digest struct {
	c uint16
}

var _ hash.Hash = (*Digest)(nil)

func New() *Digest {
	return &Digest{c: initial}
}

func (d *Digest) Write(p []byte) (int, error) {
	d.c = update(d.c, p)
	return len(p), nil
}

func (d *Digest) Sum16() uint16 {
	return d.c
}

// Sum appends the big endian checksum to b.
func (d *Digest) Sum(b []byte) []byte {
	return append(b, byte(d.c>>8), byte(d.c))
}

func (d *Digest) Reset() {
	d.c = initial
}

func (d *Digest) Size() int {
	return Size
}

func (d *Digest) BlockSize() int {
	return 1
}
