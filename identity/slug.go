package identity

import (
	"regexp"
	"strings"
)

var hotelPathRe = regexp.MustCompile(`/hotel/([a-z]{2})/([^./?#]+)`)

// HotelSlug extracts the booking site's hotel identifier from a
// listing URL, e.g. ".../hotel/il/harbor-view.html" -> "harbor-view".
// Returns "" when the URL does not look like a hotel page.
func HotelSlug(url string) string {
	m := hotelPathRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[2]
}

// CountryCode extracts the two-letter country segment of a hotel URL.
func CountryCode(url string) string {
	m := hotelPathRe.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// SnapshotKey builds a stable object key for debug snapshots of one
// hotel+date page.
func SnapshotKey(hotelURL, checkIn string) string {
	slug := HotelSlug(hotelURL)
	if slug == "" {
		slug = "unknown"
	}
	return "snapshots/" + slug + "/" + strings.ReplaceAll(checkIn, "-", "") + ".html"
}
