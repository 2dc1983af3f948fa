package linkkf

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/kfget/kfget/internal/engine/types"
	"github.com/kfget/kfget/internal/utils"
)

// Extractor locates the stream behind a player page. The page embeds its
// stream data inside inline script text rather than clean markup, so the
// matching strategy is brittle by nature; keeping it behind this interface
// lets the strategy change without touching the pipeline.
type Extractor interface {
	Extract(ctx context.Context, req *types.DownloadRequest, pageHTML string) (*types.StreamDescriptor, error)
}

// playerHosts are hosts known to serve the embedded player iframe.
var playerHosts = []string{"myani.app", "sub3.top"}

var (
	playerPostRe = regexp.MustCompile(`player_post\s*[,:=]\s*["']([^"']+)["']`)
	iframeSrcRes = []*regexp.Regexp{
		regexp.MustCompile(`["']([^"']*(?:myani\.app|sub3\.top|\.php)[^"']*)["']`),
		regexp.MustCompile(`src\s*[:=]\s*["']([^"']*(?:myani\.app|sub3\.top)[^"']*)["']`),
		regexp.MustCompile(`url\s*[:=]\s*["']([^"']*(?:myani\.app|sub3\.top)[^"']*)["']`),
	}
	m3u8Res = []*regexp.Regexp{
		regexp.MustCompile(`["']([^"']*\.m3u8[^"']*)["']`),
		regexp.MustCompile(`https?://[^\s"']+\.m3u8[^\s"']*`),
	}
)

// SiteExtractor is the default Extractor. It parses tag/attribute structure
// first and falls back to pattern matching within embedded script text when
// structured extraction fails.
type SiteExtractor struct {
	Fetcher *Fetcher
}

func NewSiteExtractor(f *Fetcher) *SiteExtractor {
	return &SiteExtractor{Fetcher: f}
}

// Extract resolves a player page into a StreamDescriptor. It follows the
// iframe the player page embeds, then reads the media source (and optional
// subtitle track) out of the iframe page.
func (e *SiteExtractor) Extract(ctx context.Context, req *types.DownloadRequest, pageHTML string) (*types.StreamDescriptor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, types.NewError(types.KindExtraction, "parse player page", err)
	}

	title := pageTitle(doc)

	iframeURL := findIframeURL(doc)
	if iframeURL == "" {
		return nil, types.Errorf(types.KindExtraction, "locate player iframe",
			"no player reference found in page for v%d-sub-%d", req.ContentID, req.SubIndex)
	}
	iframeURL = absolutize(req.RawURL, iframeURL)
	utils.Debug("Extract: iframe URL %s", iframeURL)

	iframeHTML, err := e.Fetcher.FetchPage(ctx, iframeURL, e.Fetcher.Runtime.GetRefererOrigin())
	if err != nil {
		return nil, err
	}

	iframeDoc, err := goquery.NewDocumentFromReader(strings.NewReader(iframeHTML))
	if err != nil {
		return nil, types.NewError(types.KindExtraction, "parse iframe page", err)
	}

	mediaURL := findMediaURL(iframeDoc)
	if mediaURL == "" {
		return nil, types.Errorf(types.KindExtraction, "locate media source",
			"neither a media stream nor an image sequence found")
	}
	mediaURL = absolutize(iframeURL, mediaURL)
	utils.Debug("Extract: media URL %s", mediaURL)

	desc := &types.StreamDescriptor{
		Kind:        types.DirectMedia,
		MediaURL:    mediaURL,
		SubtitleURL: findSubtitleURL(iframeDoc, iframeURL),
		Referer:     iframeURL,
		Title:       title,
	}

	if !IsPlaylistURL(mediaURL) {
		return desc, nil
	}

	return e.expandPlaylist(ctx, desc, mediaURL, iframeURL)
}

// expandPlaylist fetches an HLS playlist and rewrites the descriptor into a
// frame or segment sequence. A master playlist is followed to its highest
// bandwidth variant first.
func (e *SiteExtractor) expandPlaylist(ctx context.Context, desc *types.StreamDescriptor, mediaURL, referer string) (*types.StreamDescriptor, error) {
	body, err := e.Fetcher.FetchPage(ctx, mediaURL, referer)
	if err != nil {
		return nil, err
	}
	if !IsPlaylistContent(body) {
		return nil, types.Errorf(types.KindExtraction, "read playlist",
			"%s did not return an HLS playlist", mediaURL)
	}

	base, err := url.Parse(mediaURL)
	if err != nil {
		return nil, types.NewError(types.KindExtraction, "parse playlist url", err)
	}

	pl := ParsePlaylist(body, base)
	if pl.IsMaster {
		variant := pl.BestVariant()
		if variant == "" {
			return nil, types.Errorf(types.KindExtraction, "read master playlist",
				"master playlist has no variants")
		}
		utils.Debug("Extract: following variant %s", variant)
		return e.expandPlaylist(ctx, desc, variant, referer)
	}

	if len(pl.Segments) == 0 {
		return nil, types.Errorf(types.KindExtraction, "read playlist",
			"playlist has no segments")
	}

	desc.MediaURL = ""
	desc.SegmentURLs = make([]string, len(pl.Segments))
	desc.Durations = make([]float64, len(pl.Segments))
	for i, s := range pl.Segments {
		desc.SegmentURLs[i] = s.URL
		desc.Durations[i] = s.Duration
	}

	if pl.ImageSegments() {
		desc.Kind = types.ImageSequence
	} else {
		desc.Kind = types.SegmentSequence
	}

	return desc, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find(".myui-panel__head").First().Text())
}

// findIframeURL tries the player_post script variable first, then iframe
// elements, then looser patterns over every script body.
func findIframeURL(doc *goquery.Document) string {
	var found string

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if !strings.Contains(text, "player_post") {
			return true
		}
		if m := playerPostRe.FindStringSubmatch(text); m != nil {
			found = m[1]
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		for _, host := range playerHosts {
			if strings.Contains(src, host) {
				found = src
				return false
			}
		}
		if strings.Contains(src, ".php") {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, re := range iframeSrcRes {
			if m := re.FindStringSubmatch(text); m != nil && len(m) > 1 {
				found = m[1]
				return false
			}
		}
		return true
	})
	return found
}

// findMediaURL reads the media source out of the iframe page: a <source>
// element first, then sources nested under <video>, then m3u8 references in
// script text.
func findMediaURL(doc *goquery.Document) string {
	if src, ok := doc.Find("source").First().Attr("src"); ok && src != "" {
		return src
	}

	var found string
	doc.Find("video source").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if ok && src != "" && (strings.Contains(src, ".m3u8") || strings.HasPrefix(src, "http")) {
			found = src
			return false
		}
		return true
	})
	if found != "" {
		return found
	}

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		for _, re := range m3u8Res {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			candidate := m[0]
			if len(m) > 1 {
				candidate = m[1]
			}
			if strings.Contains(candidate, ".m3u8") {
				found = candidate
				return false
			}
		}
		return true
	})
	return found
}

// findSubtitleURL reads an optional <track> subtitle reference. Relative
// URLs are made absolute against the iframe host.
func findSubtitleURL(doc *goquery.Document, iframeURL string) string {
	src, ok := doc.Find("track").First().Attr("src")
	if !ok || src == "" {
		return ""
	}
	return absolutize(iframeURL, src)
}

// absolutize resolves ref against base, returning ref unchanged when it is
// already absolute or base is unparsable.
func absolutize(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	u, err := b.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}
