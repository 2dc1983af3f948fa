package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// SubtitleDownloader fetches the optional .vtt track next to an output
// video. Subtitles are best effort: failures are logged, never fatal.
type SubtitleDownloader struct {
	Client  *http.Client
	Runtime *types.RuntimeConfig
}

// Download saves subtitleURL beside videoPath with a .vtt extension and
// returns the subtitle path, or "" when the fetch failed.
func (d *SubtitleDownloader) Download(ctx context.Context, subtitleURL, referer, videoPath string) string {
	subtitlePath := replaceExt(videoPath, ".vtt")

	if err := d.fetch(ctx, subtitleURL, referer, subtitlePath); err != nil {
		utils.Debug("Subtitle download failed for %s: %v", subtitleURL, err)
		return ""
	}
	return subtitlePath
}

func (d *SubtitleDownloader) fetch(ctx context.Context, subtitleURL, referer, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subtitleURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())
	req.Header.Set("Accept", "text/vtt,text/plain,*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return os.WriteFile(dest, body, 0644)
}

func replaceExt(p, ext string) string {
	if idx := strings.LastIndex(p, "."); idx > strings.LastIndexAny(p, `/\`) {
		return p[:idx] + ext
	}
	return p + ext
}
