package domain

import (
	"net/url"
	"regexp"
	"strings"
)

// videoIDPattern matches a bare YouTube video id.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID derives the canonical id from a remote locator.
// The derivation is deterministic and idempotent: feeding a previously
// extracted id back in returns the same id. Locators that yield no id are
// rejected with ErrNoCanonicalID before they can enter any queue.
//
// Supported forms:
//
//	https://www.youtube.com/watch?v=ID
//	https://youtu.be/ID
//	https://www.youtube.com/shorts/ID
//	https://www.youtube.com/embed/ID
//	ID (a bare 11-character id)
func ExtractVideoID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", ErrNoCanonicalID
	}

	// Already a canonical id.
	if videoIDPattern.MatchString(locator) {
		return locator, nil
	}

	u, err := url.Parse(locator)
	if err != nil || u.Host == "" {
		return "", ErrNoCanonicalID
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		if id := firstPathSegment(u.Path); videoIDPattern.MatchString(id) {
			return id, nil
		}
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if id := u.Query().Get("v"); videoIDPattern.MatchString(id) {
			return id, nil
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) == 2 && (segments[0] == "shorts" || segments[0] == "embed") {
			if videoIDPattern.MatchString(segments[1]) {
				return segments[1], nil
			}
		}
	}

	return "", ErrNoCanonicalID
}

func firstPathSegment(path string) string {
	path = strings.Trim(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}
	return path
}
