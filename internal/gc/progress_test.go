package gc

import (
	"strings"
	"testing"
)

func TestConsoleReporterSummary(t *testing.T) {
	var buf strings.Builder
	r := NewConsoleReporter(&buf)
	r.Start()
	r.ReportScanned("s3", 3)
	r.ReportTagged("s3", []Asset{&fakeAsset{ref: "a"}})
	r.ReportDeleted("s3", []Asset{&fakeAsset{ref: "b", size: 2048}})
	r.Stop()

	out := buf.String()
	if !strings.Contains(out, "[s3] scanned 3 assets") {
		t.Errorf("missing scan line in %q", out)
	}
	if !strings.Contains(out, "scanned 3, isolated 1, deleted 1 (2.0 KiB reclaimed)") {
		t.Errorf("missing summary in %q", out)
	}
}

func TestConsoleReporterPauseSuppressesOutput(t *testing.T) {
	var buf strings.Builder
	r := NewConsoleReporter(&buf)
	r.Start()
	r.Pause()
	r.ReportScanned("s3", 5)
	if buf.Len() != 0 {
		t.Errorf("paused reporter wrote %q", buf.String())
	}
	r.Resume()
	r.ReportScanned("s3", 5)
	if !strings.Contains(buf.String(), "scanned 5 assets (10 total)") {
		t.Errorf("resume did not restore output: %q", buf.String())
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{int64(3.5 * 1024 * 1024 * 1024), "3.5 GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.n); got != tt.want {
			t.Errorf("humanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
