package fetcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	pstrings "registrar/pkg/platform/strings"
)

// AppScheme prefixes app destinations and app publishers.
const AppScheme = "android-app"

// Site reduces a web origin to scheme plus registrable domain.
func Site(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", uri, err)
	}
	if u.Scheme == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%q has no scheme or host", uri)
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || net.ParseIP(host) != nil {
		return u.Scheme + "://" + host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("no registrable domain in %q: %w", host, err)
	}
	return u.Scheme + "://" + domain, nil
}

// AppDestination normalizes an app package or app URI to android-app://pkg.
func AppDestination(dest string) (string, error) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return "", errors.New("empty app destination")
	}
	if !strings.Contains(dest, "://") {
		dest = AppScheme + "://" + dest
	}
	u, err := url.Parse(dest)
	if err != nil {
		return "", fmt.Errorf("parse app destination: %w", err)
	}
	if u.Scheme != AppScheme || u.Host == "" {
		return "", fmt.Errorf("app destination %q must use the %s scheme", dest, AppScheme)
	}
	return AppScheme + "://" + u.Host, nil
}

// parseWebDestinations accepts a single URI or an array of URIs and reduces
// each to its site. Duplicates collapse.
func parseWebDestinations(raw json.RawMessage, max int) ([]string, error) {
	var uris []string
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &uris); err != nil {
			return nil, errors.New("web_destination must be a string or string array")
		}
	} else {
		var single string
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, errors.New("web_destination must be a string or string array")
		}
		uris = []string{single}
	}
	if len(uris) == 0 {
		return nil, errors.New("web_destination is empty")
	}
	if len(uris) > max {
		return nil, fmt.Errorf("web_destination has %d entries, max %d", len(uris), max)
	}
	sites := make([]string, 0, len(uris))
	for _, uri := range uris {
		site, err := Site(uri)
		if err != nil {
			return nil, fmt.Errorf("web_destination: %w", err)
		}
		sites = append(sites, site)
	}
	return pstrings.Dedupe(sites), nil
}

// Publisher normalizes the top origin of a registration into the publisher
// identity used by rate limits.
func Publisher(topOrigin string, web bool) (string, error) {
	if web {
		return Site(topOrigin)
	}
	return AppDestination(topOrigin)
}
