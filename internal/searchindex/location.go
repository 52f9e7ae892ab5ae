package searchindex

import (
	"regexp"
	"strings"
)

// anchorSuffixRegex matches the "-1" disambiguation counter on anchors
var anchorSuffixRegex = regexp.MustCompile(`-\d+$`)

// SplitLocation splits "start/#Start-1" into "start/" and "Start-1".
// The home page has an empty path.
func SplitLocation(location string) (path, fragment string) {
	if i := strings.IndexByte(location, '#'); i >= 0 {
		return location[:i], location[i+1:]
	}
	return location, ""
}

// PagePath returns the page part of a location
func PagePath(location string) string {
	path, _ := SplitLocation(location)
	return path
}

// AnchorTitle turns an anchor back into readable text:
// "Generalized-Assignment-Problem-1" -> "Generalized Assignment Problem"
func AnchorTitle(fragment string) string {
	fragment = anchorSuffixRegex.ReplaceAllString(fragment, "")
	return strings.ReplaceAll(fragment, "-", " ")
}

// ResolveURL joins a record location onto the site root
func ResolveURL(siteURL, location string) string {
	if siteURL == "" {
		return location
	}
	if !strings.HasSuffix(siteURL, "/") {
		siteURL += "/"
	}
	return siteURL + strings.TrimPrefix(location, "/")
}
