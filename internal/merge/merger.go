// Package merge invokes the external ffmpeg tool to assemble downloaded
// frames or segments into a single playable file.
package merge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

const manifestName = "concat_list.txt"

// Merger runs ffmpeg over a downloaded frame set.
type Merger struct {
	Runtime *types.RuntimeConfig
}

// ToolPath resolves the merge tool on the system, distinguishing a missing
// tool (an environment problem the operator must fix) from a tool that
// later fails at runtime.
func (m *Merger) ToolPath() (string, error) {
	p, err := exec.LookPath(m.Runtime.GetFFmpegPath())
	if err != nil {
		return "", types.NewError(types.KindMergeToolNotFound, "locate merge tool", err)
	}
	return p, nil
}

// Merge assembles framePaths (playback order) into outputPath. Image
// sequences are encoded as a timed slideshow using the per-frame durations;
// transport-stream segments are concatenated with stream copy. A subtitle
// path, when present, is muxed as a subtitle track.
func (m *Merger) Merge(ctx context.Context, kind types.StreamKind, framePaths []string, durations []float64, subtitlePath, outputPath string) error {
	if len(framePaths) == 0 {
		return types.Errorf(types.KindMergeFailed, "merge", "no frames to merge")
	}

	tool, err := m.ToolPath()
	if err != nil {
		return err
	}

	manifest := filepath.Join(filepath.Dir(framePaths[0]), manifestName)
	if err := writeManifest(manifest, kind, framePaths, durations); err != nil {
		return err
	}
	defer os.Remove(manifest)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", manifest,
	}
	if subtitlePath != "" {
		args = append(args, "-i", subtitlePath)
	}

	switch kind {
	case types.ImageSequence:
		args = append(args,
			"-vf", "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2",
			"-r", "30",
			"-c:v", "libx264",
			"-preset", "ultrafast",
			"-crf", "28",
			"-pix_fmt", "yuv420p",
		)
	default:
		args = append(args, "-c", "copy")
	}

	if subtitlePath != "" {
		args = append(args, "-c:s", "mov_text")
	}

	args = append(args,
		"-threads", "0",
		"-y",
		outputPath,
	)

	mergeCtx, cancel := context.WithTimeout(ctx, m.Runtime.GetMergeTimeout())
	defer cancel()

	utils.Debug("Merge: %s %s", tool, strings.Join(args, " "))

	cmd := exec.CommandContext(mergeCtx, tool, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Killing the direct child does not kill processes it forked; any of
	// them holding the stderr pipe open would stall Run past the timeout.
	// WaitDelay forces the pipe closed shortly after the kill.
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if errors.Is(mergeCtx.Err(), context.DeadlineExceeded) {
			return types.Errorf(types.KindMergeFailed, "merge", "merge tool timed out")
		}
		return types.Errorf(types.KindMergeFailed, "merge", "%v: %s", err, stderrTail(&stderr))
	}

	return nil
}

// writeManifest writes the ffmpeg concat demuxer file list. Image mode adds
// a duration line per frame and repeats the last frame so the final image
// holds until the clip ends.
func writeManifest(path string, kind types.StreamKind, framePaths []string, durations []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewError(types.KindIO, "write merge manifest", err)
	}

	w := bufio.NewWriter(f)
	for i, frame := range framePaths {
		fmt.Fprintf(w, "file '%s'\n", filepath.Base(frame))
		if kind == types.ImageSequence {
			d := 5.0
			if i < len(durations) && durations[i] > 0 {
				d = durations[i]
			}
			fmt.Fprintf(w, "duration %g\n", d)
		}
	}
	if kind == types.ImageSequence {
		fmt.Fprintf(w, "file '%s'\n", filepath.Base(framePaths[len(framePaths)-1]))
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return types.NewError(types.KindIO, "write merge manifest", err)
	}
	if err := f.Close(); err != nil {
		return types.NewError(types.KindIO, "write merge manifest", err)
	}
	return nil
}

// stderrTail returns the last few lines of ffmpeg's stderr, which is where
// it reports the actual failure.
func stderrTail(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}
