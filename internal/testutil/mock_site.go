// Package testutil provides testing utilities for the kfget pipeline.
package testutil

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// jpegFrame is a minimal payload carrying a JPEG magic number, enough for
// content sniffing without being a decodable image.
var jpegFrame = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00},
	bytes.Repeat([]byte{0xAB}, 512)...)

// tsFrame starts with the MPEG-TS sync byte.
var tsFrame = append([]byte{0x47}, bytes.Repeat([]byte{0xCD}, 512)...)

// MockSite is a configurable fake of the streaming site: a player page that
// embeds an iframe, an iframe page that names the media source, and the
// media itself (direct file, or an HLS playlist plus frames).
type MockSite struct {
	Server *httptest.Server

	// Configuration
	Title         string        // player page <title>
	FrameCount    int           // number of playlist segments
	FrameDuration float64       // EXTINF seconds per segment
	DirectMedia   bool          // serve a plain video file instead of a playlist
	TSSegments    bool          // serve .ts segments instead of image frames
	MasterFirst   bool          // media URL points at a master playlist
	WithSubtitle  bool          // iframe page carries a <track> element
	PlayerStatus  int           // status code for the player page (default 200)
	IframeStatus  int           // status code for the iframe page (default 200)
	Latency       time.Duration // artificial latency per request
	DirectBody    []byte        // payload of the direct media file

	// FailFrames fails the first N requests for each listed frame index
	// with HTTP 500, then serves normally.
	FailFrames map[int]int

	// HTMLFrames serves an HTML error page with status 200 for the listed
	// frame indexes.
	HTMLFrames map[int]bool

	// Tracking
	PlayerHits   atomic.Int64
	IframeHits   atomic.Int64
	PlaylistHits atomic.Int64
	FrameHits    atomic.Int64
	SubtitleHits atomic.Int64

	failMu sync.Mutex
}

// MockSiteOption configures a MockSite.
type MockSiteOption func(*MockSite)

// WithTitle sets the player page title.
func WithTitle(title string) MockSiteOption {
	return func(m *MockSite) { m.Title = title }
}

// WithFrameCount sets how many segments the playlist lists.
func WithFrameCount(n int) MockSiteOption {
	return func(m *MockSite) { m.FrameCount = n }
}

// WithDirectMedia makes the iframe page reference a plain video file.
func WithDirectMedia() MockSiteOption {
	return func(m *MockSite) { m.DirectMedia = true }
}

// WithTSSegments serves transport-stream segments instead of image frames.
func WithTSSegments() MockSiteOption {
	return func(m *MockSite) { m.TSSegments = true }
}

// WithMasterPlaylist puts a master playlist in front of the media playlist.
func WithMasterPlaylist() MockSiteOption {
	return func(m *MockSite) { m.MasterFirst = true }
}

// WithSubtitle adds a subtitle track to the iframe page.
func WithSubtitle() MockSiteOption {
	return func(m *MockSite) { m.WithSubtitle = true }
}

// WithPlayerStatus sets the status code served for the player page.
func WithPlayerStatus(code int) MockSiteOption {
	return func(m *MockSite) { m.PlayerStatus = code }
}

// WithFrameFailures fails the first count requests for the given frame
// index before serving it.
func WithFrameFailures(index, count int) MockSiteOption {
	return func(m *MockSite) {
		if m.FailFrames == nil {
			m.FailFrames = make(map[int]int)
		}
		m.FailFrames[index] = count
	}
}

// WithHTMLFrame makes the given frame index serve an HTML page with 200.
func WithHTMLFrame(index int) MockSiteOption {
	return func(m *MockSite) {
		if m.HTMLFrames == nil {
			m.HTMLFrames = make(map[int]bool)
		}
		m.HTMLFrames[index] = true
	}
}

// WithLatency adds per-request latency.
func WithLatency(d time.Duration) MockSiteOption {
	return func(m *MockSite) { m.Latency = d }
}

// NewMockSite creates and starts a mock site.
func NewMockSite(opts ...MockSiteOption) *MockSite {
	m := &MockSite{
		Title:         "테스트 애니 1화",
		FrameCount:    4,
		FrameDuration: 5.0,
		PlayerStatus:  http.StatusOK,
		IframeStatus:  http.StatusOK,
		DirectBody:    bytes.Repeat([]byte{0x5A}, 4096),
	}
	for _, opt := range opts {
		opt(m)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/player/", m.handlePlayer)
	mux.HandleFunc("/iframe.php", m.handleIframe)
	mux.HandleFunc("/master.m3u8", m.handleMaster)
	mux.HandleFunc("/stream.m3u8", m.handlePlaylist)
	mux.HandleFunc("/frames/", m.handleFrame)
	mux.HandleFunc("/video.mp4", m.handleDirect)
	mux.HandleFunc("/subs.vtt", m.handleSubtitle)

	m.Server = NewHTTPServer(mux)
	return m
}

// Close shuts the underlying server down.
func (m *MockSite) Close() {
	m.Server.Close()
}

// URL returns the site's base URL.
func (m *MockSite) URL() string {
	return m.Server.URL
}

// PlayerURL returns a player page URL for the given content id and sub index.
func (m *MockSite) PlayerURL(contentID, subIndex int) string {
	return fmt.Sprintf("%s/player/v%d-sub-%d/", m.Server.URL, contentID, subIndex)
}

func (m *MockSite) delay() {
	if m.Latency > 0 {
		time.Sleep(m.Latency)
	}
}

func (m *MockSite) handlePlayer(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.PlayerHits.Add(1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if m.PlayerStatus != http.StatusOK {
		w.WriteHeader(m.PlayerStatus)
		return
	}
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>%s</title></head>
<body>
<div class="player"></div>
<script>
var player_post = "%s/iframe.php";
</script>
</body>
</html>`, m.Title, m.Server.URL)
}

func (m *MockSite) handleIframe(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.IframeHits.Add(1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if m.IframeStatus != http.StatusOK {
		w.WriteHeader(m.IframeStatus)
		return
	}

	var mediaRef string
	switch {
	case m.DirectMedia:
		mediaRef = m.Server.URL + "/video.mp4"
	case m.MasterFirst:
		mediaRef = m.Server.URL + "/master.m3u8"
	default:
		mediaRef = m.Server.URL + "/stream.m3u8"
	}

	track := ""
	if m.WithSubtitle {
		track = fmt.Sprintf(`<track kind="subtitles" src="%s/subs.vtt" srclang="ko">`, m.Server.URL)
	}

	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<body>
<video>
<source src="%s" type="application/x-mpegURL">
%s
</video>
</body>
</html>`, mediaRef, track)
}

func (m *MockSite) handleMaster(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.PlaylistHits.Add(1)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	fmt.Fprintf(w, `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=400000,RESOLUTION=640x360
%s/stream.m3u8?q=low
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=1280x720
%s/stream.m3u8
`, m.Server.URL, m.Server.URL)
}

func (m *MockSite) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.PlaylistHits.Add(1)
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")

	ext := ".jpg"
	if m.TSSegments {
		ext = ".ts"
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n")
	for i := 0; i < m.FrameCount; i++ {
		fmt.Fprintf(&b, "#EXTINF:%.1f,\n%s/frames/%03d%s\n", m.FrameDuration, m.Server.URL, i, ext)
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	fmt.Fprint(w, b.String())
}

func (m *MockSite) frameIndex(path string) int {
	base := path[strings.LastIndex(path, "/")+1:]
	if dot := strings.Index(base, "."); dot >= 0 {
		base = base[:dot]
	}
	var idx int
	if _, err := fmt.Sscanf(base, "%d", &idx); err != nil {
		return -1
	}
	return idx
}

func (m *MockSite) handleFrame(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.FrameHits.Add(1)

	idx := m.frameIndex(r.URL.Path)

	m.failMu.Lock()
	remaining := m.FailFrames[idx]
	if remaining > 0 {
		m.FailFrames[idx] = remaining - 1
	}
	m.failMu.Unlock()
	if remaining > 0 {
		http.Error(w, "upstream error", http.StatusInternalServerError)
		return
	}

	if m.HTMLFrames[idx] {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><body>session expired</body></html>")
		return
	}

	if m.TSSegments {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Write(tsFrame)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(jpegFrame)
}

func (m *MockSite) handleDirect(w http.ResponseWriter, r *http.Request) {
	m.delay()
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Accept-Ranges", "bytes")

	if rng := r.Header.Get("Range"); rng != "" {
		// Only the probe's bytes=0-0 request is expected here.
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes 0-0/%d", len(m.DirectBody)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(m.DirectBody[:1])
		return
	}
	w.Write(m.DirectBody)
}

func (m *MockSite) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	m.delay()
	m.SubtitleHits.Add(1)
	w.Header().Set("Content-Type", "text/vtt")
	fmt.Fprint(w, "WEBVTT\n\n00:00.000 --> 00:05.000\n안녕하세요\n")
}
