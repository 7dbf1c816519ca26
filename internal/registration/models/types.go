package models

import "fmt"

// RegistrationType is the closed set of registration kinds a WorkItem can carry.
type RegistrationType string

const (
	RegistrationAppSource  RegistrationType = "app_source"
	RegistrationAppTrigger RegistrationType = "app_trigger"
	RegistrationWebSource  RegistrationType = "web_source"
	RegistrationWebTrigger RegistrationType = "web_trigger"
)

// ParseRegistrationType validates s against the known registration kinds.
func ParseRegistrationType(s string) (RegistrationType, error) {
	switch t := RegistrationType(s); t {
	case RegistrationAppSource, RegistrationAppTrigger, RegistrationWebSource, RegistrationWebTrigger:
		return t, nil
	}
	return "", fmt.Errorf("unknown registration type %q", s)
}

// IsSource reports whether the registration produces a Source.
func (t RegistrationType) IsSource() bool {
	return t == RegistrationAppSource || t == RegistrationWebSource
}

// IsWeb reports whether the registration was initiated from a web context.
func (t RegistrationType) IsWeb() bool {
	return t == RegistrationWebSource || t == RegistrationWebTrigger
}

// Surface is the publisher surface implied by the registration kind.
func (t RegistrationType) Surface() Surface {
	if t.IsWeb() {
		return SurfaceWeb
	}
	return SurfaceApp
}

// SourceType distinguishes clicks from views.
type SourceType string

const (
	SourceTypeEvent      SourceType = "event"
	SourceTypeNavigation SourceType = "navigation"
)

// ParseSourceType validates s.
func ParseSourceType(s string) (SourceType, error) {
	switch t := SourceType(s); t {
	case SourceTypeEvent, SourceTypeNavigation:
		return t, nil
	}
	return "", fmt.Errorf("unknown source type %q", s)
}

// Surface is the destination or publisher platform.
type Surface string

const (
	SurfaceApp Surface = "app"
	SurfaceWeb Surface = "web"
)

// AttributionMode is assigned by the noise decision.
type AttributionMode string

const (
	AttributionTruthfully AttributionMode = "truthfully"
	AttributionNever      AttributionMode = "never"
	AttributionFalsely    AttributionMode = "falsely"
)

// SourceStatus is decided by the install-state policy.
type SourceStatus string

const (
	SourceActive         SourceStatus = "active"
	SourceMarkedToDelete SourceStatus = "marked_to_delete"
)

// ReportStatus tracks event report delivery.
type ReportStatus string

const (
	ReportPending ReportStatus = "pending"
)

// SummaryOperator aggregates trigger values inside a trigger spec.
type SummaryOperator string

const (
	SummaryCount    SummaryOperator = "count"
	SummaryValueSum SummaryOperator = "value_sum"
)
