package ingestion

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrInvalidURL is returned when a URL is malformed or not http(s)
var ErrInvalidURL = fmt.Errorf("invalid URL")

// trackingParams are query parameters that never affect which posting a URL
// identifies. Stripping them keeps the dedup key stable across campaign links.
var trackingParams = map[string]bool{
	"gclid":        true,
	"fbclid":       true,
	"ref":          true,
	"source":       true,
	"src":          true,
	"gh_src":       true,
	"lever-origin": true,
}

func isTrackingParam(key string) bool {
	return trackingParams[key] || strings.HasPrefix(key, "utm_")
}

// NormalizeURL canonicalizes a posting URL into the dedup key:
// lowercase scheme and host, default ports stripped, fragment dropped,
// tracking parameters removed, remaining query sorted, trailing slash
// trimmed. Two URLs that normalize equal are the same posting.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	host := strings.ToLower(u.Host)
	if scheme == "http" {
		host = strings.TrimSuffix(host, ":80")
	} else {
		host = strings.TrimSuffix(host, ":443")
	}

	path := strings.TrimRight(u.Path, "/")

	query := ""
	if u.RawQuery != "" {
		values, err := url.ParseQuery(u.RawQuery)
		if err == nil {
			for key := range values {
				if isTrackingParam(strings.ToLower(key)) {
					values.Del(key)
				}
			}
			if len(values) > 0 {
				query = "?" + sortedEncode(values)
			}
		}
	}

	return scheme + "://" + host + path + query, nil
}

// sortedEncode encodes query values with keys in a stable order.
// url.Values.Encode already sorts keys; this also sorts repeated values.
func sortedEncode(values url.Values) string {
	for key := range values {
		sort.Strings(values[key])
	}
	return values.Encode()
}
