package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
)

// fakeTool writes a shell script that records its arguments, optionally
// fails, and creates its last argument as the output file.
func fakeTool(t *testing.T, dir string, exitCode int) (toolPath, argsFile string) {
	t.Helper()

	argsFile = filepath.Join(dir, "args.txt")
	toolPath = filepath.Join(dir, "fake-ffmpeg")

	script := fmt.Sprintf(`#!/bin/sh
echo "$@" > %q
if [ %d -ne 0 ]; then
  echo "conversion failed" >&2
  exit %d
fi
last=""
for a in "$@"; do last="$a"; done
touch "$last"
`, argsFile, exitCode, exitCode)

	if err := os.WriteFile(toolPath, []byte(script), 0755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return toolPath, argsFile
}

func writeFrames(t *testing.T, dir string, n int, ext string) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		paths[i] = filepath.Join(dir, fmt.Sprintf("segment_%05d%s", i, ext))
		if err := os.WriteFile(paths[i], []byte{0x47}, 0644); err != nil {
			t.Fatalf("write frame: %v", err)
		}
	}
	return paths
}

func TestMergeImageSequence(t *testing.T) {
	dir := t.TempDir()
	tool, argsFile := fakeTool(t, dir, 0)
	frames := writeFrames(t, dir, 3, ".jpg")
	output := filepath.Join(dir, "out.mp4")

	m := &Merger{Runtime: &types.RuntimeConfig{FFmpegPath: tool}}
	err := m.Merge(context.Background(), types.ImageSequence, frames, []float64{5, 4, 6}, "", output)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	if _, err := os.Stat(output); err != nil {
		t.Errorf("output file not created: %v", err)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read recorded args: %v", err)
	}
	for _, want := range []string{"-f concat", "libx264", "yuv420p", "scale=1280:720"} {
		if !strings.Contains(string(args), want) {
			t.Errorf("tool args missing %q: %s", want, args)
		}
	}
	if strings.Contains(string(args), "-c copy") {
		t.Error("image sequence must re-encode, not stream copy")
	}
}

func TestMergeSegmentSequenceCopies(t *testing.T) {
	dir := t.TempDir()
	tool, argsFile := fakeTool(t, dir, 0)
	frames := writeFrames(t, dir, 2, ".ts")
	output := filepath.Join(dir, "out.mp4")

	m := &Merger{Runtime: &types.RuntimeConfig{FFmpegPath: tool}}
	if err := m.Merge(context.Background(), types.SegmentSequence, frames, nil, "", output); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), "-c copy") {
		t.Errorf("segment concat should stream copy: %s", args)
	}
}

func TestMergeWithSubtitle(t *testing.T) {
	dir := t.TempDir()
	tool, argsFile := fakeTool(t, dir, 0)
	frames := writeFrames(t, dir, 2, ".jpg")
	subtitle := filepath.Join(dir, "out.vtt")
	os.WriteFile(subtitle, []byte("WEBVTT"), 0644)

	m := &Merger{Runtime: &types.RuntimeConfig{FFmpegPath: tool}}
	err := m.Merge(context.Background(), types.ImageSequence, frames, nil, subtitle, filepath.Join(dir, "out.mp4"))
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	args, _ := os.ReadFile(argsFile)
	if !strings.Contains(string(args), subtitle) {
		t.Errorf("subtitle input missing from args: %s", args)
	}
	if !strings.Contains(string(args), "mov_text") {
		t.Errorf("subtitle codec missing from args: %s", args)
	}
}

func TestMergeToolFailure(t *testing.T) {
	dir := t.TempDir()
	tool, _ := fakeTool(t, dir, 1)
	frames := writeFrames(t, dir, 2, ".jpg")

	m := &Merger{Runtime: &types.RuntimeConfig{FFmpegPath: tool}}
	err := m.Merge(context.Background(), types.ImageSequence, frames, nil, "", filepath.Join(dir, "out.mp4"))
	if err == nil {
		t.Fatal("Merge should fail when the tool exits non-zero")
	}
	if kind := types.KindOf(err); kind != types.KindMergeFailed {
		t.Errorf("error kind = %v, want merge_failed", kind)
	}
	if !strings.Contains(err.Error(), "conversion failed") {
		t.Errorf("tool stderr missing from error: %v", err)
	}
}

func TestMergeToolNotFound(t *testing.T) {
	m := &Merger{Runtime: &types.RuntimeConfig{FFmpegPath: "kfget-no-such-tool"}}
	frames := writeFrames(t, t.TempDir(), 1, ".jpg")

	err := m.Merge(context.Background(), types.ImageSequence, frames, nil, "", "out.mp4")
	if err == nil {
		t.Fatal("Merge should fail when the tool is missing")
	}
	if kind := types.KindOf(err); kind != types.KindMergeToolNotFound {
		t.Errorf("error kind = %v, want merge_tool_not_found", kind)
	}
}

func TestMergeTimeout(t *testing.T) {
	dir := t.TempDir()
	toolPath := filepath.Join(dir, "slow-ffmpeg")
	// The forked child inherits stderr and outlives the killed shell, so
	// Merge must not wait for it to release the pipe.
	script := "#!/bin/sh\nsleep 5 &\nwait\n"
	if err := os.WriteFile(toolPath, []byte(script), 0755); err != nil {
		t.Fatalf("write slow tool: %v", err)
	}
	frames := writeFrames(t, dir, 1, ".jpg")

	m := &Merger{Runtime: &types.RuntimeConfig{
		FFmpegPath:   toolPath,
		MergeTimeout: 100 * time.Millisecond,
	}}
	start := time.Now()
	err := m.Merge(context.Background(), types.ImageSequence, frames, nil, "", filepath.Join(dir, "out.mp4"))
	if err == nil {
		t.Fatal("Merge should fail on timeout")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
	if kind := types.KindOf(err); kind != types.KindMergeFailed {
		t.Errorf("error kind = %v, want merge_failed", kind)
	}
}

func TestWriteManifest(t *testing.T) {
	dir := t.TempDir()
	frames := writeFrames(t, dir, 3, ".jpg")
	manifest := filepath.Join(dir, manifestName)

	err := writeManifest(manifest, types.ImageSequence, frames, []float64{5, 4.2, 6})
	if err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}

	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	content := string(data)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	// 3 frames with a duration each, plus the repeated last frame.
	if len(lines) != 7 {
		t.Fatalf("manifest has %d lines, want 7:\n%s", len(lines), content)
	}
	if lines[0] != "file 'segment_00000.jpg'" {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[1] != "duration 5" {
		t.Errorf("second line = %q", lines[1])
	}
	if lines[3] != "duration 4.2" {
		t.Errorf("fourth line = %q", lines[3])
	}
	if lines[6] != "file 'segment_00002.jpg'" {
		t.Errorf("last line should repeat the final frame, got %q", lines[6])
	}
}

func TestWriteManifestSegments(t *testing.T) {
	dir := t.TempDir()
	frames := writeFrames(t, dir, 2, ".ts")
	manifest := filepath.Join(dir, manifestName)

	if err := writeManifest(manifest, types.SegmentSequence, frames, nil); err != nil {
		t.Fatalf("writeManifest failed: %v", err)
	}

	data, _ := os.ReadFile(manifest)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("segment manifest has %d lines, want 2:\n%s", len(lines), data)
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "duration") {
			t.Errorf("segment manifest must not carry duration lines: %q", l)
		}
	}
}
