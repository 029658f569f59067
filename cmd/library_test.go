package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codedswitch/studio/internal/pattern"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestLibraryAndExportCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfgData := "library: " + filepath.Join(dir, "library.db") + "\nlog_file: " + filepath.Join(dir, "studio.log") + "\n"
	if err := os.WriteFile(cfgPath, []byte(cfgData), 0o644); err != nil {
		t.Fatal(err)
	}

	p := pattern.DefaultKit()
	p.BPM = 97
	p.Tracks[0].Steps[4].Active = true
	src := filepath.Join(dir, "groove.yaml")
	if err := pattern.WriteFile(src, p); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", cfgPath, "library", "save", src, "groove")
	if err != nil || !strings.Contains(out, "Saved groove") {
		t.Fatalf("save: %v %q", err, out)
	}

	out, err = run(t, "--config", cfgPath, "library", "list")
	if err != nil || !strings.Contains(out, "groove") || !strings.Contains(out, "97") {
		t.Fatalf("list: %v %q", err, out)
	}

	out, err = run(t, "--config", cfgPath, "library", "show", "groove")
	if err != nil || !strings.Contains(out, "bpm: 97") {
		t.Fatalf("show: %v %q", err, out)
	}

	mid := filepath.Join(dir, "groove.mid")
	if _, err := run(t, "--config", cfgPath, "export", "groove", mid); err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := pattern.ReadFile(mid)
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}
	if got.BPM != 97 || !got.Tracks[0].Steps[4].Active {
		t.Errorf("exported pattern lost data: bpm %v", got.BPM)
	}

	if _, err := run(t, "--config", cfgPath, "library", "rm", "groove"); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if _, err := run(t, "--config", cfgPath, "export", "groove", mid); err == nil {
		t.Error("export of a deleted pattern succeeded")
	}
}
