package linkkf

import (
	"bufio"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const defaultSegmentDuration = 5.0

var bandwidthRe = regexp.MustCompile(`BANDWIDTH=(\d+)`)

// Segment is one entry of a media playlist in playback order.
type Segment struct {
	URL      string
	Duration float64 // EXTINF seconds
}

// Variant is one stream of a master playlist.
type Variant struct {
	URL       string
	Bandwidth int64
}

// Playlist is a parsed HLS playlist. A master playlist has Variants; a
// media playlist has Segments.
type Playlist struct {
	IsMaster bool
	Variants []Variant
	Segments []Segment
}

// IsPlaylistURL reports whether a media URL points at an HLS playlist.
func IsPlaylistURL(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".m3u8")
}

// IsPlaylistContent reports whether fetched text is an HLS playlist.
func IsPlaylistContent(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "#EXTM3U")
}

// ParsePlaylist scans playlist text line by line. Relative entry URLs are
// resolved against baseURL. Segment order follows the playlist, which is
// playback order.
func ParsePlaylist(body string, baseURL *url.URL) *Playlist {
	pl := &Playlist{}

	var (
		nextIsVariant bool
		variantBW     int64
		duration      = defaultSegmentDuration
	)

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if nextIsVariant {
			nextIsVariant = false
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			if u := resolveRef(baseURL, line); u != "" {
				pl.Variants = append(pl.Variants, Variant{URL: u, Bandwidth: variantBW})
			}
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			pl.IsMaster = true
			variantBW = 0
			if m := bandwidthRe.FindStringSubmatch(line); len(m) == 2 {
				variantBW, _ = strconv.ParseInt(m[1], 10, 64)
			}
			nextIsVariant = true
			continue
		}

		if strings.HasPrefix(line, "#EXTINF:") {
			duration = parseExtinf(line)
			continue
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if u := resolveRef(baseURL, line); u != "" {
			pl.Segments = append(pl.Segments, Segment{URL: u, Duration: duration})
		}
	}

	return pl
}

// BestVariant returns the highest-bandwidth variant of a master playlist,
// or "" when there is none.
func (p *Playlist) BestVariant() string {
	var (
		best   string
		bestBW int64 = -1
	)
	for _, v := range p.Variants {
		if v.Bandwidth > bestBW {
			best = v.URL
			bestBW = v.Bandwidth
		}
	}
	return best
}

// ImageSegments reports whether the playlist delivers frames as still
// images rather than transport-stream segments.
func (p *Playlist) ImageSegments() bool {
	if len(p.Segments) == 0 {
		return false
	}
	first := strings.ToLower(p.Segments[0].URL)
	if u, err := url.Parse(first); err == nil {
		first = u.Path
	}
	return strings.HasSuffix(first, ".jpg") ||
		strings.HasSuffix(first, ".jpeg") ||
		strings.HasSuffix(first, ".png")
}

func parseExtinf(line string) float64 {
	val := strings.TrimPrefix(line, "#EXTINF:")
	if idx := strings.Index(val, ","); idx != -1 {
		val = val[:idx]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil || d <= 0 {
		return defaultSegmentDuration
	}
	return d
}

func resolveRef(base *url.URL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if base == nil {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}
