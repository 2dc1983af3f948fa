package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/h2non/filetype"
	"golang.org/x/sync/errgroup"

	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// FrameDownloader retrieves every frame/segment of a sequence stream into
// numbered local files. Order is preserved through index-derived names, so
// the parallel fetches cannot reorder playback.
type FrameDownloader struct {
	Client       *http.Client
	ProgressChan chan<- any
	ID           string
	Runtime      *types.RuntimeConfig
}

// DownloadAll fetches urls into dir as zero-padded numbered files and
// returns the local paths in playback order. A frame that keeps failing
// after the configured retries fails the whole call; the partial frame set
// is removed by the caller. There is no partial success.
func (d *FrameDownloader) DownloadAll(ctx context.Context, urls []string, referer, dir string) ([]string, error) {
	if len(urls) == 0 {
		return nil, types.Errorf(types.KindExtraction, "download frames", "empty frame list")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, types.NewError(types.KindIO, "create frame dir", err)
	}

	paths := make([]string, len(urls))
	var completed atomic.Int64
	total := int64(len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.Runtime.GetFrameParallelism())

	for i, frameURL := range urls {
		g.Go(func() error {
			dest := filepath.Join(dir, frameName(i, frameURL))
			if err := d.downloadFrame(gctx, frameURL, referer, dest); err != nil {
				return err
			}
			paths[i] = dest
			d.reportProgress(completed.Add(1), total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.KindCancelled, "download frames", ctx.Err())
		}
		return nil, err
	}

	return paths, nil
}

// downloadFrame fetches one frame with bounded retries and verifies the
// payload is what the URL claims. Sites serve HTML block pages with a 200
// status; those must not end up spliced into the output video.
func (d *FrameDownloader) downloadFrame(ctx context.Context, frameURL, referer, dest string) error {
	var lastErr error
	attempts := d.Runtime.GetMaxRetries()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.Runtime.GetRetryBackoff() * time.Duration(attempt)):
			}
		}

		if err := d.fetchFrameOnce(ctx, frameURL, referer, dest); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			utils.Debug("Frame %s attempt %d failed: %v", frameURL, attempt+1, err)
			lastErr = err
			continue
		}
		return nil
	}

	op := fmt.Sprintf("download frame %s", path.Base(frameURL))
	var pe *types.PipelineError
	if errors.As(lastErr, &pe) {
		return types.NewError(pe.Kind, op, pe.Err)
	}
	return types.NewError(types.KindNetwork, op, lastErr)
}

func (d *FrameDownloader) fetchFrameOnce(ctx context.Context, frameURL, referer, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, frameURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("FrameDownloader: error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(strings.ToLower(ct), "html") {
		return fmt.Errorf("server returned HTML instead of frame data")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty frame body")
	}

	if err := verifyFrame(frameURL, body); err != nil {
		return err
	}

	if err := os.WriteFile(dest, body, 0644); err != nil {
		return types.NewError(types.KindIO, "write frame file", err)
	}
	return nil
}

// verifyFrame checks that an image URL actually delivered image bytes.
func verifyFrame(frameURL string, body []byte) error {
	if !isImageURL(frameURL) {
		// Transport-stream segments have no magic worth checking beyond
		// rejecting text masquerading as media.
		if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
			return fmt.Errorf("segment body looks like markup")
		}
		return nil
	}
	if !filetype.IsImage(body) {
		return fmt.Errorf("frame body is not an image")
	}
	return nil
}

func (d *FrameDownloader) reportProgress(completed, total int64) {
	if d.ProgressChan == nil {
		return
	}
	select {
	case d.ProgressChan <- events.ProgressMsg{
		RequestID: d.ID,
		Phase:     types.PhaseDownloading,
		Completed: completed,
		Total:     total,
	}:
	default:
	}
}

// frameName builds the zero-padded local name for frame i, keeping the
// source extension so the merger can tell images from segments.
func frameName(i int, frameURL string) string {
	ext := ".ts"
	if u, err := url.Parse(frameURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".jpg", ".jpeg":
			ext = ".jpg"
		case ".png":
			ext = ".png"
		}
	}
	return fmt.Sprintf("segment_%05d%s", i, ext)
}

func isImageURL(frameURL string) bool {
	u, err := url.Parse(frameURL)
	if err != nil {
		return false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}
