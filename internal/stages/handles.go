package stages

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	linkedInPath = regexp.MustCompile(`(?i)linkedin\.com/in/([^/?#\s]+)`)
	gitHubPath   = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9](?:[A-Za-z0-9-]{0,38}))(?:[/?#]|$)`)
)

// Top-level GitHub paths that are not user accounts.
var gitHubReserved = map[string]bool{
	"about": true, "apps": true, "collections": true, "enterprise": true, "events": true,
	"explore": true, "features": true, "login": true, "marketplace": true, "orgs": true,
	"pricing": true, "search": true, "settings": true, "sponsors": true, "topics": true,
	"trending": true, "join": true, "site": true, "security": true, "readme": true,
}

// LinkedInHandle extracts the profile username from a LinkedIn URL or text.
func LinkedInHandle(s string) string {
	m := linkedInPath.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	h, err := url.PathUnescape(m[1])
	if err != nil {
		h = m[1]
	}
	return strings.TrimSpace(h)
}

// GitHubHandle extracts the username from a GitHub URL or text.
func GitHubHandle(s string) string {
	m := gitHubPath.FindStringSubmatch(s)
	if m == nil || gitHubReserved[strings.ToLower(m[1])] {
		return ""
	}
	return m[1]
}
