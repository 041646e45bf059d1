package auth

import (
	"fmt"
	"net/url"
	"strings"
)

// DevAPIBaseURL is the API used by the dev.* front end.
const DevAPIBaseURL = "https://dev-api.tuum.day/api"

// ResolveBaseURL derives the API base address from the front end origin:
// local development ports map to the local API, dev hosts to the dev API,
// and anything else to the same-origin /api path.
func ResolveBaseURL(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid origin %q: scheme and host required", origin)
	}

	host := u.Hostname()
	port := u.Port()

	switch {
	case host == "localhost" || host == "127.0.0.1":
		if port == "8000" || port == "8001" {
			return "http://localhost:" + port + "/api", nil
		}
	case strings.Contains(host, "dev."):
		return DevAPIBaseURL, nil
	}

	// Same origin
	return u.Scheme + "://" + u.Host + "/api", nil
}
