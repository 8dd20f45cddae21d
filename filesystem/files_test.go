// SPDX-License-Identifier: GPL-2.0-or-later

package filesystem

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"modelguy/pack"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for n, c := range files {
		p := filepath.Join(dir, n)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(c), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func writePak(t *testing.T, name string, files map[string]string) {
	t.Helper()
	m := make(map[string][]byte, len(files))
	for n, c := range files {
		m[n] = []byte(c)
	}
	var b bytes.Buffer
	if err := pack.Write(&b, m); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(name, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func testTree(t *testing.T) (base, game string) {
	base = t.TempDir()
	game = t.TempDir()
	writeFiles(t, base, map[string]string{
		"doc1.txt":       "loose base",
		"doc5.txt":       "good file5\n",
		"models/guy.mdl": "loose guy",
	})
	writePak(t, filepath.Join(base, "pak0.pak"), map[string]string{
		"doc1.txt":        "pak0",
		"doc2.txt":        "pak0",
		"models/guyt.mdl": "pak0 textures",
	})
	writePak(t, filepath.Join(base, "pak1.pak"), map[string]string{
		"doc2.txt": "pak1",
	})
	writeFiles(t, game, map[string]string{
		"doc3.txt": "game",
	})
	return base, game
}

func TestSearchOrder(t *testing.T) {
	base, game := testTree(t)
	s, err := NewSearch(base, game)
	if err != nil {
		t.Fatalf("NewSearch: %v", err)
	}
	defer s.Close()
	tests := []struct {
		name string
		want string
	}{
		{"doc1.txt", "pak0"},
		{"doc2.txt", "pak1"},
		{"doc3.txt", "game"},
		{"doc5.txt", "good file5\n"},
		{"/models/guy.mdl", "loose guy"},
		{"models/guyt.mdl", "pak0 textures"},
	}
	for _, tc := range tests {
		b, err := s.ReadFile(tc.name)
		if err != nil {
			t.Errorf("ReadFile(%s): %v", tc.name, err)
			continue
		}
		if string(b) != tc.want {
			t.Errorf("ReadFile(%s) got: %q, want %q", tc.name, b, tc.want)
		}
		if !s.Exists(tc.name) {
			t.Errorf("Exists(%s) = false", tc.name)
		}
	}
	if _, err := s.ReadFile("doc9.txt"); !os.IsNotExist(err) {
		t.Errorf("ReadFile missing err = %v", err)
	}
	if s.Exists("doc9.txt") || s.Exists("models") {
		t.Errorf("Exists reports missing file or directory")
	}
}

func TestSearchWrite(t *testing.T) {
	base, game := testTree(t)
	s, err := NewSearch(base, game)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.WriteFile("models/out.mdl", []byte("merged")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	b, err := os.ReadFile(filepath.Join(game, "models", "out.mdl"))
	if err != nil || string(b) != "merged" {
		t.Errorf("written file = %q, %v", b, err)
	}
	if _, err := NewSearch(filepath.Join(base, "doc1.txt")); err == nil {
		t.Errorf("NewSearch on a file should fail")
	}
}

func TestDirAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	d := NewDir(dir)
	if err := d.WriteFile("guy.mdl", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteFile("guy.mdl", []byte("two")); err != nil {
		t.Fatal(err)
	}
	b, err := d.ReadFile(filepath.Join(dir, "guy.mdl"))
	if err != nil || string(b) != "two" {
		t.Errorf("ReadFile = %q, %v", b, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
	if !d.Exists("guy.mdl") || d.Exists("guyt.mdl") {
		t.Errorf("Exists mismatch")
	}
}

func TestPackFileSystemReadDir(t *testing.T) {
	name := filepath.Join(t.TempDir(), "pak0.pak")
	writePak(t, name, map[string]string{
		"a.txt":        "a",
		"models/b.mdl": "b",
		"models/c.mdl": "c",
	})
	p, err := pack.Open(name)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()
	pfs := packFileSystem{p}
	root, _ := pfs.ReadDir("/")
	models, _ := pfs.ReadDir("/models")
	if len(root) != 1 || len(models) != 2 {
		t.Errorf("ReadDir got %d and %d entries, want 1 and 2", len(root), len(models))
	}
}

func TestExt(t *testing.T) {
	tests := []struct {
		path, ext, stripped string
	}{
		{"models/guy.mdl", ".mdl", "models/guy"},
		{"models.d/guy", "", "models.d/guy"},
		{`c:\a.b\guy.MDL`, ".MDL", `c:\a.b\guy`},
	}
	for _, tc := range tests {
		if got := Ext(tc.path); got != tc.ext {
			t.Errorf("Ext(%s) got: %v, want %v", tc.path, got, tc.ext)
		}
		if got := StripExt(tc.path); got != tc.stripped {
			t.Errorf("StripExt(%s) got: %v, want %v", tc.path, got, tc.stripped)
		}
	}
}
