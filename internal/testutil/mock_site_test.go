package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestMockSiteServesPipelinePages(t *testing.T) {
	site := NewMockSite(WithFrameCount(2), WithTitle("모의 1화"))
	defer site.Close()

	code, body := get(t, site.PlayerURL(10, 1))
	if code != http.StatusOK {
		t.Fatalf("player page status %d", code)
	}
	if !strings.Contains(body, "player_post") || !strings.Contains(body, "모의 1화") {
		t.Errorf("player page malformed:\n%s", body)
	}

	code, body = get(t, site.URL()+"/iframe.php")
	if code != http.StatusOK || !strings.Contains(body, "stream.m3u8") {
		t.Errorf("iframe page malformed (status %d):\n%s", code, body)
	}

	code, body = get(t, site.URL()+"/stream.m3u8")
	if code != http.StatusOK || !strings.HasPrefix(body, "#EXTM3U") {
		t.Errorf("playlist malformed (status %d):\n%s", code, body)
	}
	if strings.Count(body, "#EXTINF") != 2 {
		t.Errorf("playlist should list 2 frames:\n%s", body)
	}

	code, body = get(t, site.URL()+"/frames/000.jpg")
	if code != http.StatusOK {
		t.Fatalf("frame status %d", code)
	}
	if !strings.HasPrefix(body, "\xff\xd8\xff") {
		t.Error("frame payload missing JPEG magic")
	}

	if site.PlayerHits.Load() != 1 || site.FrameHits.Load() != 1 {
		t.Errorf("hit counters off: player=%d frames=%d",
			site.PlayerHits.Load(), site.FrameHits.Load())
	}
}

func TestMockSiteFrameFailureInjection(t *testing.T) {
	site := NewMockSite(WithFrameFailures(0, 1))
	defer site.Close()

	code, _ := get(t, site.URL()+"/frames/000.jpg")
	if code != http.StatusInternalServerError {
		t.Errorf("first request should fail, got %d", code)
	}
	code, _ = get(t, site.URL()+"/frames/000.jpg")
	if code != http.StatusOK {
		t.Errorf("second request should succeed, got %d", code)
	}
}

func TestMockSiteDirectMediaRange(t *testing.T) {
	site := NewMockSite(WithDirectMedia())
	defer site.Close()

	req, _ := http.NewRequest(http.MethodGet, site.URL()+"/video.mp4", nil)
	req.Header.Set("Range", "bytes=0-0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Errorf("status = %d, want 206", resp.StatusCode)
	}
	if cr := resp.Header.Get("Content-Range"); !strings.HasSuffix(cr, "/4096") {
		t.Errorf("Content-Range = %q", cr)
	}
}
