// SPDX-License-Identifier: GPL-2.0-or-later

// Package image encodes exported textures and reads them back.
package image

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"modelguy/filesystem"
)

// Formats lists the supported file extensions.
var Formats = []string{".bmp", ".png", ".tga", ".webp"}

type FileWriter interface {
	WriteFile(name string, data []byte) error
}

type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// Encode writes img in the format named by the extension ext.
func Encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case ".bmp":
		return bmp.Encode(w, img)
	case ".png":
		return png.Encode(w, img)
	case ".tga":
		return tga.Encode(w, img)
	case ".webp":
		return nativewebp.Encode(w, img, nil)
	}
	return errors.Errorf("unsupported image format %q", ext)
}

// Decode reads an image in the format named by ext.
func Decode(data []byte, ext string) (image.Image, error) {
	r := bytes.NewReader(data)
	switch strings.ToLower(ext) {
	case ".bmp":
		return bmp.Decode(r)
	case ".png":
		return png.Decode(r)
	case ".tga":
		return tga.Decode(r)
	case ".webp":
		return webp.Decode(r)
	}
	return nil, errors.Errorf("unsupported image format %q", ext)
}

// Write stores img under name, the format following the extension.
func Write(st FileWriter, name string, img image.Image) error {
	var b bytes.Buffer
	if err := Encode(&b, filesystem.Ext(name), img); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return st.WriteFile(name, b.Bytes())
}

// Verify reads name back from st and checks that it decodes to an image of
// the size of want.
func Verify(st FileReader, name string, want image.Image) error {
	data, err := st.ReadFile(name)
	if err != nil {
		return err
	}
	img, err := Decode(data, filesystem.Ext(name))
	if err != nil {
		return errors.Wrapf(err, "read back %s", name)
	}
	if got, w := img.Bounds().Size(), want.Bounds().Size(); got != w {
		return errors.Errorf("read back %s: size %v, want %v", name, got, w)
	}
	return nil
}
