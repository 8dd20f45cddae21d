// SPDX-License-Identifier: GPL-2.0-or-later

package pack

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writePak(t *testing.T, files map[string][]byte) string {
	t.Helper()
	var b bytes.Buffer
	if err := Write(&b, files); err != nil {
		t.Fatalf("Write: %v", err)
	}
	name := filepath.Join(t.TempDir(), "pak0.pak")
	if err := os.WriteFile(name, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	return name
}

func TestPak(t *testing.T) {
	pakFile := writePak(t, map[string][]byte{
		"doc1.txt":         []byte("this is the first doc\r\n"),
		"models/guy.mdl":   []byte("IDST"),
		"models/guyt.mdl":  nil,
		"testdir/doc4.txt": []byte("this is the fourth doc"),
	})
	p, err := Open(pakFile)
	if err != nil {
		t.Fatalf("could not open %s: %v", pakFile, err)
	}
	defer p.Close()
	if p.String() != pakFile {
		t.Errorf("pack String error: want %v got %v", pakFile, p.String())
	}
	want := []string{"doc1.txt", "models/guy.mdl", "models/guyt.mdl", "testdir/doc4.txt"}
	got := p.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	f1, err := p.Open("doc1.txt")
	if err != nil {
		t.Fatalf("Got no file 'doc1.txt': %v", err)
	}
	b1, err := io.ReadAll(f1)
	if err != nil {
		t.Fatalf("Could not read f1: %v", err)
	}
	if string(b1) != "this is the first doc\r\n" {
		t.Errorf("f1 contents is '%v'", string(b1))
	}
	f5, err := p.Open("testdir/doc4.txt")
	if err != nil {
		t.Fatalf("Got no file 'testdir/doc4.txt': %v", err)
	}
	b5, _ := io.ReadAll(f5)
	if string(b5) != "this is the fourth doc" {
		t.Errorf("f5 contents is '%v'", string(b5))
	}
	if _, err := p.Open("doc2.txt"); !os.IsNotExist(err) {
		t.Errorf("Open missing entry err = %v", err)
	}
}

func TestPakCorrupt(t *testing.T) {
	dir := t.TempDir()
	tests := map[string][]byte{
		"magic":     []byte("KCAP\x0c\x00\x00\x00\x00\x00\x00\x00"),
		"short":     []byte("PA"),
		"directory": []byte("PACK\x0c\x00\x00\x00\x40\x00\x00\x00"),
	}
	for n, data := range tests {
		name := filepath.Join(dir, n+".pak")
		if err := os.WriteFile(name, data, 0644); err != nil {
			t.Fatal(err)
		}
		if p, err := Open(name); err == nil {
			p.Close()
			t.Errorf("%s: Open should fail", n)
		}
	}
}
