// Package download retrieves located media, frames, and subtitles to disk.
package download

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/kfget/kfget/internal/engine/events"
	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// DirectDownloader streams a single media URL to a file.
// If interrupted, the partial file is removed and the download restarts.
type DirectDownloader struct {
	Client       *http.Client
	ProgressChan chan<- any
	ID           string
	Runtime      *types.RuntimeConfig
}

// Download writes the response body of mediaURL to destPath, reporting
// progress every buffer chunk. Network failures restart the transfer from
// byte zero with fixed backoff up to the configured attempt count. Returns
// the number of bytes written.
func (d *DirectDownloader) Download(ctx context.Context, mediaURL, referer, destPath string) (int64, error) {
	var lastErr error
	attempts := d.Runtime.GetMaxRetries()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			utils.Debug("DirectDownloader: retry %d/%d for %s", attempt, attempts-1, mediaURL)
			select {
			case <-ctx.Done():
				return 0, types.NewError(types.KindCancelled, "download media", ctx.Err())
			case <-time.After(d.Runtime.GetRetryBackoff() * time.Duration(attempt)):
			}
		}

		written, err := d.downloadOnce(ctx, mediaURL, referer, destPath)
		if err == nil {
			return written, nil
		}
		// IO and cancellation failures are not transient; only network
		// errors earn another attempt.
		if ctx.Err() != nil || types.KindOf(err) != types.KindNetwork {
			return written, err
		}
		lastErr = err
	}

	return 0, lastErr
}

func (d *DirectDownloader) downloadOnce(ctx context.Context, mediaURL, referer, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return 0, types.NewError(types.KindNetwork, "request media", err)
	}
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, types.NewError(types.KindNetwork, "request media", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			utils.Debug("DirectDownloader: error closing response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, types.Errorf(types.KindNetwork, "request media",
			"unexpected status code: %d", resp.StatusCode)
	}

	total := resp.ContentLength
	workingPath := destPath + types.IncompleteSuffix
	outFile, err := os.Create(workingPath)
	if err != nil {
		return 0, types.NewError(types.KindIO, "create output file", err)
	}

	success := false
	defer func() {
		_ = outFile.Close()
		if !success {
			_ = os.Remove(workingPath)
		}
	}()

	start := time.Now()

	var written int64
	buf := make([]byte, d.Runtime.GetProgressChunk())

	for {
		select {
		case <-ctx.Done():
			return written, types.NewError(types.KindCancelled, "download media", ctx.Err())
		default:
		}

		nr, readErr := resp.Body.Read(buf)
		if nr > 0 {
			nw, writeErr := outFile.Write(buf[0:nr])
			if nw > 0 {
				written += int64(nw)
				d.reportProgress(written, total)
			}
			if writeErr != nil {
				return written, types.NewError(types.KindIO, "write output file", writeErr)
			}
			if nr != nw {
				return written, types.NewError(types.KindIO, "write output file", io.ErrShortWrite)
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return written, types.NewError(types.KindNetwork, "read media stream", readErr)
		}
	}

	if err := outFile.Sync(); err != nil {
		return written, types.NewError(types.KindIO, "sync output file", err)
	}
	if err := outFile.Close(); err != nil {
		return written, types.NewError(types.KindIO, "close output file", err)
	}

	if err := os.Rename(workingPath, destPath); err != nil {
		if copyErr := copyFile(workingPath, destPath); copyErr != nil {
			return written, types.NewError(types.KindIO, "finalize output file", copyErr)
		}
		_ = os.Remove(workingPath)
	}

	success = true

	utils.Debug("Downloaded %s (%d bytes) in %s",
		destPath, written, time.Since(start).Round(time.Second))

	return written, nil
}

func (d *DirectDownloader) reportProgress(completed, total int64) {
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
	default: // never block the transfer on a slow sink
	}
}

// ProbeResult carries server metadata gathered before the real transfer.
type ProbeResult struct {
	Size      int64
	Extension string
}

// Probe sends a Range: bytes=0-0 GET to learn the media size and a file
// extension before the real transfer starts. Extension comes from the
// Content-Disposition filename first, then the URL path, then ".mp4".
// Network failures are retried like the transfer itself.
func (d *DirectDownloader) Probe(ctx context.Context, mediaURL, referer string) (*ProbeResult, error) {
	var lastErr error
	attempts := d.Runtime.GetMaxRetries()

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, types.NewError(types.KindCancelled, "probe media", ctx.Err())
			case <-time.After(d.Runtime.GetRetryBackoff() * time.Duration(attempt)):
			}
		}

		result, err := d.probeOnce(ctx, mediaURL, referer)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || types.KindOf(err) != types.KindNetwork {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (d *DirectDownloader) probeOnce(ctx context.Context, mediaURL, referer string) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, types.NewError(types.KindNetwork, "probe media", err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, types.NewError(types.KindNetwork, "probe media", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	result := &ProbeResult{Extension: ".mp4"}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// Content-Range: bytes 0-0/TOTAL
		if cr := resp.Header.Get("Content-Range"); cr != "" {
			if idx := strings.LastIndex(cr, "/"); idx != -1 && cr[idx+1:] != "*" {
				result.Size, _ = strconv.ParseInt(cr[idx+1:], 10, 64)
			}
		}
	case http.StatusOK:
		result.Size = resp.ContentLength
	default:
		return nil, types.Errorf(types.KindNetwork, "probe media",
			"unexpected status code: %d", resp.StatusCode)
	}

	if ext := mediaExtension(resp, mediaURL); ext != "" {
		result.Extension = ext
	}

	return result, nil
}

// mediaExtension picks a file extension for a direct download.
func mediaExtension(resp *http.Response, mediaURL string) string {
	if _, name, _ := httpheader.ContentDisposition(resp.Header); name != "" {
		if ext := path.Ext(name); ext != "" {
			return ext
		}
	}
	if u, err := url.Parse(mediaURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ""
}

// copyFile copies a file from src to dst (fallback when rename fails)
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); err != nil {
			utils.Debug("Error closing input file: %v", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			utils.Debug("Error closing output file: %v", err)
		}
	}()

	buf := make([]byte, 1024*1024)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		return err
	}
	return out.Sync()
}
