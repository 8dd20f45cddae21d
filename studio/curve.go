// SPDX-License-Identifier: GPL-2.0-or-later

package studio

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Curve is the run length encoded value stream of one animated channel,
// cut to the entries covering the sequence's frames. Each span starts with a
// header entry (low byte valid, high byte total) followed by valid values.
// The last value repeats until total frames are covered.
type Curve []int16

// Channels holds the curves of one bone in one blend. A nil curve means the
// channel keeps the bone default.
type Channels [NumChannels]Curve

func spanHeader(e int16) (valid, total int) {
	u := uint16(e)
	return int(u & 0xff), int(u >> 8)
}

// CurveExtent walks the spans starting at off until they cover numFrames
// frames and returns the number of entries used.
func CurveExtent(buf []byte, off int64, numFrames int) (int, error) {
	frames := max(numFrames, 1)
	n, covered := 0, 0
	for covered < frames {
		p := off + int64(n)*2
		if p < 0 || p+2 > int64(len(buf)) {
			return n, errors.Wrapf(ErrOutOfBounds, "span header at %d (size %d)", p, len(buf))
		}
		valid, total := spanHeader(int16(binary.LittleEndian.Uint16(buf[p:])))
		if valid == 0 || total == 0 || valid > total {
			return n, errors.Wrapf(ErrMalformedStream, "span at %d has valid %d total %d", p, valid, total)
		}
		n += valid + 1
		covered += total
	}
	if end := off + int64(n)*2; end > int64(len(buf)) {
		return n, errors.Wrapf(ErrOutOfBounds, "curve ends at %d (size %d)", end, len(buf))
	}
	return n, nil
}

// ReadCurve decodes the curve at off covering numFrames frames.
func ReadCurve(buf []byte, off int64, numFrames int) (Curve, error) {
	n, err := CurveExtent(buf, off, numFrames)
	if err != nil {
		return nil, err
	}
	c := make(Curve, n)
	for i := range c {
		c[i] = int16(binary.LittleEndian.Uint16(buf[off+int64(i)*2:]))
	}
	return c, nil
}

func (c Curve) at(i int, fallback int16) int16 {
	if i >= 0 && i < len(c) {
		return c[i]
	}
	return fallback
}

// Values returns the raw values at frame and at the frame after it.
//
// Inside a span's valid window the second value is the next entry. At the
// end of a span the second value is taken from the first entry of the next
// span. Reads past the decoded entries fail closed: a missing first value
// reads as 0, a missing second value repeats the first, and a frame beyond
// the span chain holds the last valid entry of the final span.
func (c Curve) Values(frame int) (v1, v2 int16) {
	if len(c) == 0 {
		return 0, 0
	}
	i, k := 0, max(frame, 0)
	valid, total := spanHeader(c[0])
	for total <= k {
		next := i + valid + 1
		if next >= len(c) {
			v := c.at(i+valid, 0)
			return v, v
		}
		k -= total
		i = next
		valid, total = spanHeader(c[i])
	}
	if valid > k {
		v1 = c.at(i+k+1, 0)
		switch {
		case valid > k+1:
			v2 = c.at(i+k+2, v1)
		case total > k+1:
			v2 = v1
		default:
			v2 = c.at(i+valid+2, v1)
		}
		return v1, v2
	}
	v1 = c.at(i+valid, 0)
	if total > k+1 {
		return v1, v1
	}
	return v1, c.at(i+valid+2, v1)
}

// Sample interpolates between frame and frame+1 by s.
func (c Curve) Sample(frame int, s float32) float32 {
	v1, v2 := c.Values(frame)
	return float32(v1)*(1-s) + float32(v2)*s
}

// animSource returns the buffer holding the anim blocks of sd and their
// offset in it.
func (m *Model) animSource(sd *SeqDesc) ([]byte, int64, error) {
	var data int32
	if m.hdr().NumSeqGroups > 0 {
		g, err := m.SequenceGroup(int(sd.SeqGroup))
		if err != nil {
			return nil, 0, errors.Wrapf(ErrInvalidCrossReference, "sequence group %d: %v", sd.SeqGroup, err)
		}
		data = g.Data
	}
	if sd.SeqGroup == 0 {
		return m.s.Bytes(), int64(data) + int64(sd.AnimIndex), nil
	}
	g := int(sd.SeqGroup)
	if g >= len(m.groups) || m.groups[g] == nil {
		return nil, 0, errors.Wrapf(ErrUnsupportedExternalData, "sequence group %d is not loaded", g)
	}
	return m.groups[g], int64(data) + int64(sd.AnimIndex), nil
}

// AnimCurves decodes the curves of every bone for one blend of a sequence.
func (m *Model) AnimCurves(seq, blend int) ([]Channels, error) {
	sd, err := m.Sequence(seq)
	if err != nil {
		return nil, err
	}
	if blend < 0 || blend >= int(sd.NumBlends) {
		return nil, errors.Wrapf(ErrOutOfBounds, "sequence %d blend %d of %d", seq, blend, sd.NumBlends)
	}
	buf, base, err := m.animSource(&sd)
	if err != nil {
		return nil, errors.Wrapf(err, "sequence %d", seq)
	}
	nb := m.NumBones()
	out := make([]Channels, nb)
	for b := 0; b < nb; b++ {
		rec := base + int64(blend*nb+b)*AnimSize
		var a Anim
		if err := readAt(buf, rec, &a); err != nil {
			return nil, errors.Wrapf(err, "sequence %d blend %d bone %d", seq, blend, b)
		}
		for ch, o := range a.Offset {
			if o == 0 {
				continue
			}
			c, err := ReadCurve(buf, rec+int64(o), int(sd.NumFrames))
			if err != nil {
				return nil, errors.Wrapf(err, "sequence %d blend %d bone %d channel %d", seq, blend, b, ch)
			}
			out[b][ch] = c
		}
	}
	return out, nil
}
