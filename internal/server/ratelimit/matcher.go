package ratelimit

import (
	"strings"
)

// exemptEndpoints are never rate limited, whatever the configuration says.
var exemptEndpoints = map[string]string{
	"/health": "GET",
}

// MatchEndpoint matches a request path and method to an endpoint
// configuration. Exact path matches win over prefix matches; a config path
// ending in "/" matches any request under it (e.g. "/applications/" matches
// "/applications/{id}/artifacts"). Returns nil when nothing matches, in
// which case the caller falls back to the global default.
func MatchEndpoint(path string, method string, configs []EndpointConfig) *EndpointConfig {
	if exemptMethod, ok := exemptEndpoints[path]; ok && exemptMethod == method {
		return &EndpointConfig{} // zero Limit means unlimited
	}

	var prefixMatch *EndpointConfig
	for i := range configs {
		config := &configs[i]
		if config.Method != method {
			continue
		}
		if config.Path == path {
			return config
		}
		if prefixMatch == nil && strings.HasSuffix(config.Path, "/") && strings.HasPrefix(path, config.Path) {
			prefixMatch = config
		}
	}

	return prefixMatch
}
