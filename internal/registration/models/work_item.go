package models

import (
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultRedirectCount is the counter value of a chain that has no row yet:
// the originating request counts as the first hop.
const DefaultRedirectCount = 1

// WorkItem is one queued registration fetch.
type WorkItem struct {
	ID                  string
	RegistrationURI     string
	RegistrationOrigin  string
	RegistrationID      string
	Type                RegistrationType
	SourceType          SourceType
	Registrant          string
	TopOrigin           string
	OsDestination       string
	WebDestination      string
	VerifiedDestination string
	RequestTime         time.Time
	RetryCount          int
	DebugKeyAllowed     bool
}

// NewWorkItem builds a fresh chain head. The registration id starts a new
// redirect chain.
func NewWorkItem(uri string, typ RegistrationType, requestTime time.Time) *WorkItem {
	return &WorkItem{
		ID:                 uuid.NewString(),
		RegistrationURI:    uri,
		RegistrationOrigin: OriginOf(uri),
		RegistrationID:     uuid.NewString(),
		Type:               typ,
		RequestTime:        requestTime,
	}
}

// Redirected derives the work item for a redirect target. Everything except
// the id, URI and retry count is inherited from the parent.
func (w *WorkItem) Redirected(uri string) *WorkItem {
	child := *w
	child.ID = uuid.NewString()
	child.RegistrationURI = uri
	child.RegistrationOrigin = OriginOf(uri)
	child.RetryCount = 0
	return &child
}

// OriginOf returns scheme://host of uri, or "" when uri does not parse.
func OriginOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// RedirectAdmission returns how many of offered redirects fit in the chain
// budget given the current counter value.
func RedirectAdmission(current, budget, offered int) int {
	admitted := min(offered, budget-current)
	return max(0, admitted)
}
