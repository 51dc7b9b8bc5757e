// ABOUTME: Normalises the user-supplied server address before endpoint paths are appended
// ABOUTME: Bare host:port gets http://; a top-level /v1 is dropped to avoid /v1/v1/...

package httputil

import (
	"net/url"
	"strings"
)

// NormalizeBaseURL returns baseURL with a scheme, without trailing slashes and
// without a top-level "/v1" path. Nested paths such as "/api/v1" are kept, since
// a reverse proxy may mount the server there. Unparseable input is returned
// trimmed so that Validate can report it.
func NormalizeBaseURL(baseURL string) string {
	s := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil || u.Path != "/v1" {
		return s
	}
	u.Path = ""
	return u.String()
}
