package linkkf

import (
	"testing"

	"github.com/kfget/kfget/internal/engine/types"
)

func TestParseRequest(t *testing.T) {
	t.Run("CanonicalURL", func(t *testing.T) {
		req, err := ParseRequest("https://kr.linkkf.net/player/v401148-sub-1/", "/tmp/out")
		if err != nil {
			t.Fatalf("ParseRequest failed: %v", err)
		}
		if req.ContentID != 401148 {
			t.Errorf("ContentID = %d, want 401148", req.ContentID)
		}
		if req.SubIndex != 1 {
			t.Errorf("SubIndex = %d, want 1", req.SubIndex)
		}
		if req.DestDir != "/tmp/out" {
			t.Errorf("DestDir = %q, want /tmp/out", req.DestDir)
		}
		if req.ID == "" {
			t.Error("request ID should not be empty")
		}
	})

	t.Run("NoTrailingSlash", func(t *testing.T) {
		req, err := ParseRequest("https://kr.linkkf.net/player/v7-sub-12", ".")
		if err != nil {
			t.Fatalf("ParseRequest failed: %v", err)
		}
		if req.ContentID != 7 || req.SubIndex != 12 {
			t.Errorf("got v%d-sub-%d, want v7-sub-12", req.ContentID, req.SubIndex)
		}
	})

	t.Run("HTTPScheme", func(t *testing.T) {
		if _, err := ParseRequest("http://kr.linkkf.net/player/v1-sub-1/", "."); err != nil {
			t.Errorf("plain http should be accepted: %v", err)
		}
	})

	t.Run("UniqueIDs", func(t *testing.T) {
		a, _ := ParseRequest("https://kr.linkkf.net/player/v1-sub-1/", ".")
		b, _ := ParseRequest("https://kr.linkkf.net/player/v1-sub-1/", ".")
		if a.ID == b.ID {
			t.Error("two parsed requests must not share an ID")
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		invalid := []string{
			"",
			"not a url",
			"https://kr.linkkf.net/",
			"https://kr.linkkf.net/player/",
			"https://kr.linkkf.net/player/v-sub-1/",
			"https://kr.linkkf.net/player/v123-sub-/",
			"https://kr.linkkf.net/player/v123-sub-1/extra",
			"ftp://kr.linkkf.net/player/v123-sub-1/",
			"https://kr.linkkf.net/ani/v123-sub-1/",
		}
		for _, raw := range invalid {
			req, err := ParseRequest(raw, ".")
			if err == nil {
				t.Errorf("ParseRequest(%q) should fail, got %+v", raw, req)
				continue
			}
			if kind := types.KindOf(err); kind != types.KindInvalidURL {
				t.Errorf("ParseRequest(%q) error kind = %v, want invalid_url", raw, kind)
			}
		}
	})
}

func TestLooksLikePlayerURL(t *testing.T) {
	if !LooksLikePlayerURL("https://kr.linkkf.net/player/v401148-sub-1/") {
		t.Error("canonical player URL not recognized")
	}
	if LooksLikePlayerURL("https://example.com/watch?v=123") {
		t.Error("unrelated URL recognized as player URL")
	}
}
