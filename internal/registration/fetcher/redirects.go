package fetcher

import (
	"net/http"
	"net/url"

	pstrings "registrar/pkg/platform/strings"
)

// ExtractRedirects returns the redirect targets announced by a response. The
// list header may fan out to several URIs and wins over Location, which
// carries at most one. Relative references resolve against base.
func ExtractRedirects(header http.Header, base *url.URL) []string {
	targets := pstrings.SplitList(header.Values(HeaderRedirect))
	if len(targets) == 0 {
		if loc := header.Get(HeaderLocation); loc != "" {
			targets = []string{loc}
		}
	}
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		ref, err := url.Parse(target)
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		out = append(out, ref.String())
	}
	return out
}
