package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveServiceName(t *testing.T) {
	cases := map[string]string{
		"myconfig":           "ssr-local-myconfig",
		"ssr-local-myconfig": "ssr-local-myconfig",
	}
	for in, want := range cases {
		if got := resolveServiceName(in); got != want {
			t.Fatalf("resolveServiceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateUnitContainsExecStart(t *testing.T) {
	unit := generateUnit("ssr-local-myconfig", "/usr/local/bin/ssr-local", "/etc/ssr-local/configs/myconfig.toml")
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/ssr-local run -c /etc/ssr-local/configs/myconfig.toml") {
		t.Fatalf("unit missing expected ExecStart line:\n%s", unit)
	}
	if !strings.Contains(unit, "[Service]") || !strings.Contains(unit, "[Install]") {
		t.Fatalf("unit missing systemd sections:\n%s", unit)
	}
}

func TestCopyFilePreservesContentAndPermissions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	if err := os.WriteFile(src, []byte("hello world"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := copyFile(src, dst, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Fatalf("mode = %v, want 0644", info.Mode().Perm())
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := copyFile(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"), 0644); err == nil {
		t.Fatal("expected an error for a missing source file")
	}
}
