package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ssrlocal/internal/config"
)

func TestFormatProbeResultsAllSucceeded(t *testing.T) {
	results := []ProbeResult{
		{Seq: 1, RTT: 10 * time.Millisecond},
		{Seq: 2, RTT: 20 * time.Millisecond},
	}
	out := FormatProbeResults("example.com:8388", results)
	if !strings.Contains(out, "2 attempted, 2 succeeded, 0% loss") {
		t.Fatalf("missing success summary: %q", out)
	}
	if !strings.Contains(out, "connect min/avg/max") {
		t.Fatalf("missing min/avg/max line: %q", out)
	}
}

func TestFormatProbeResultsWithFailures(t *testing.T) {
	results := []ProbeResult{
		{Seq: 1, RTT: 10 * time.Millisecond},
		{Seq: 2, Err: os.ErrDeadlineExceeded},
	}
	out := FormatProbeResults("example.com:8388", results)
	if !strings.Contains(out, "seq=2 error:") {
		t.Fatalf("missing error line: %q", out)
	}
	if !strings.Contains(out, "2 attempted, 1 succeeded, 50% loss") {
		t.Fatalf("missing summary line: %q", out)
	}
}

func TestCheckConfigValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
remote_host = "203.0.113.1"
remote_port = 8388
password = "secret"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	out := CheckConfig(path)
	if !strings.Contains(out, "Config OK") {
		t.Fatalf("expected Config OK, got: %q", out)
	}
}

func TestCheckConfigInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`remote_port = 8388`), 0644); err != nil {
		t.Fatal(err)
	}
	out := CheckConfig(path)
	if !strings.Contains(out, "INVALID") {
		t.Fatalf("expected INVALID, got: %q", out)
	}
}

func TestCheckConfigMissingFile(t *testing.T) {
	out := CheckConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !strings.Contains(out, "ERROR") {
		t.Fatalf("expected ERROR, got: %q", out)
	}
}

func TestProbeRecordsConnectFailureWithoutPanicking(t *testing.T) {
	cfg := &config.Config{RemoteHost: "203.0.113.1", RemotePort: 1}
	results := Probe(cfg, 1)
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
}
