package utils

import (
	"fmt"
	"regexp"
	"strings"
)

const maxTitleLength = 100

var (
	unsafeChars    = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedScore  = regexp.MustCompile(`_+`)
	repeatedSpace  = regexp.MustCompile(`\s+`)
	siteSuffix     = regexp.MustCompile(`(?i)\s*Linkkf\s*$`)
	subtitleSuffix = regexp.MustCompile(`-자막$`)
)

// SanitizeTitle turns a page title into a filesystem-safe base name.
// Empty input yields an empty string; callers fall back to FallbackName.
func SanitizeTitle(title string) string {
	s := unsafeChars.ReplaceAllString(title, "_")
	s = repeatedScore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	s = siteSuffix.ReplaceAllString(s, "")
	s = subtitleSuffix.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.ReplaceAll(s, "'", "")
	s = repeatedSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxTitleLength {
		s = strings.TrimSpace(string(r[:maxTitleLength]))
	}
	return s
}

// FallbackName builds an output base name from the content id and sub index
// when the page offered no usable title. The same id pair always round-trips
// into the same name.
func FallbackName(contentID, subIndex int) string {
	return fmt.Sprintf("video_%d_%d", contentID, subIndex)
}

// OutputBase picks the output base name for a request: sanitized title when
// present, id-derived fallback otherwise.
func OutputBase(title string, contentID, subIndex int) string {
	if s := SanitizeTitle(title); s != "" {
		return s
	}
	return FallbackName(contentID, subIndex)
}
