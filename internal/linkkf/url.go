// Package linkkf locates video streams behind kr.linkkf.net player pages.
package linkkf

import (
	"regexp"
	"strconv"

	"github.com/google/uuid"

	"github.com/kfget/kfget/internal/engine/types"
)

// playerURLRe matches player URLs of the form
// https://<host>/player/v<contentID>-sub-<subIndex>/ (trailing slash optional).
var playerURLRe = regexp.MustCompile(`^https?://[^/]+/player/v(\d+)-sub-(\d+)/?$`)

// ParseRequest validates a raw player URL and builds a DownloadRequest.
// It performs no network I/O; a non-matching URL fails immediately.
func ParseRequest(rawURL, destDir string) (*types.DownloadRequest, error) {
	m := playerURLRe.FindStringSubmatch(rawURL)
	if m == nil {
		return nil, types.Errorf(types.KindInvalidURL, "parse url",
			"%q does not match .../player/v<id>-sub-<n>/", rawURL)
	}

	contentID, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, types.NewError(types.KindInvalidURL, "parse content id", err)
	}
	subIndex, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, types.NewError(types.KindInvalidURL, "parse sub index", err)
	}

	return &types.DownloadRequest{
		ID:        uuid.New().String(),
		RawURL:    rawURL,
		ContentID: contentID,
		SubIndex:  subIndex,
		DestDir:   destDir,
	}, nil
}

// LooksLikePlayerURL reports whether s has the player URL shape, without
// building a request.
func LooksLikePlayerURL(s string) bool {
	return playerURLRe.MatchString(s)
}
