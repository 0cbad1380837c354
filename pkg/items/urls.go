package items

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a page url so that the same page saved from two
// places maps to one row. The host and scheme are lowercased, the fragment
// and common tracking params are dropped, and a trailing slash on the path is
// removed. Unparseable input is returned as-is since it can still serve as an
// opaque key.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	if u.RawQuery != "" {
		query := u.Query()
		for param := range query {
			if strings.HasPrefix(param, "utm_") {
				query.Del(param)
			}
		}
		u.RawQuery = query.Encode()
	}

	return u.String()
}
