package models

import (
	"time"
)

const (
	// ReportingDelay is added to a window end to get the report's send time.
	ReportingDelay = time.Hour

	eventTriggerDataCardinality      = 2
	navigationTriggerDataCardinality = 8
	eventMaxReports                  = 1
	navigationMaxReports             = 3
)

var navigationEarlyWindows = []time.Duration{2 * 24 * time.Hour, 7 * 24 * time.Hour}

// FilterData maps a filter key to its allowed values.
type FilterData map[string][]string

// ReportWindows are window end offsets relative to the source event time.
type ReportWindows struct {
	Start time.Duration
	Ends  []time.Duration
}

// TriggerSpec customizes how a set of trigger data values is reported.
type TriggerSpec struct {
	TriggerData           []uint32
	Windows               *ReportWindows
	SummaryWindowOperator SummaryOperator
	SummaryBuckets        []uint32
}

// FlexConfig is the optional flexible event-level reporting block. A nil
// TriggerSpecs with a non-nil MaxEventLevelReports or Windows is the
// "lite" form.
type FlexConfig struct {
	MaxEventLevelReports *int
	Windows              *ReportWindows
	TriggerSpecs         []TriggerSpec
}

// Source is a validated attribution source.
type Source struct {
	ID                       string
	EventID                  uint64
	AppDestinations          []string
	WebDestinations          []string
	EnrollmentID             string
	Publisher                string
	PublisherType            Surface
	Registrant               string
	RegistrationOrigin       string
	RegistrationID           string
	SourceType               SourceType
	EventTime                time.Time
	ExpiryTime               time.Time
	EventReportWindow        time.Time
	AggregatableReportWindow time.Time
	Priority                 int64
	FilterData               FilterData
	AggregationKeys          map[string]string
	SharedAggregationKeys    []string
	DebugKey                 *uint64
	DebugJoinKey             string
	DebugReporting           bool
	InstallAttributionWindow time.Duration
	InstallCooldownWindow    time.Duration
	DropSourceIfInstalled    bool
	AttributionMode          AttributionMode
	Status                   SourceStatus
	Flex                     *FlexConfig
}

// Destinations returns the declared destinations on one surface.
func (s *Source) Destinations(surface Surface) []string {
	if surface == SurfaceWeb {
		return s.WebDestinations
	}
	return s.AppDestinations
}

// Surfaces lists the destination surfaces present, app first.
func (s *Source) Surfaces() []Surface {
	var out []Surface
	if len(s.AppDestinations) > 0 {
		out = append(out, SurfaceApp)
	}
	if len(s.WebDestinations) > 0 {
		out = append(out, SurfaceWeb)
	}
	return out
}

// HasDualDestination reports whether both surfaces are declared.
func (s *Source) HasDualDestination() bool {
	return len(s.AppDestinations) > 0 && len(s.WebDestinations) > 0
}

// HasTriggerSpecs reports whether the full flexible API is in use.
func (s *Source) HasTriggerSpecs() bool {
	return s.Flex != nil && len(s.Flex.TriggerSpecs) > 0
}

// HasFlexLite reports whether only the simplified flexible fields are set.
func (s *Source) HasFlexLite() bool {
	return s.Flex != nil && len(s.Flex.TriggerSpecs) == 0 &&
		(s.Flex.MaxEventLevelReports != nil || s.Flex.Windows != nil)
}

// TriggerDataCardinality is the number of distinct trigger data values a
// report from this source can carry.
func (s *Source) TriggerDataCardinality() int {
	if s.HasTriggerSpecs() {
		n := 0
		for _, spec := range s.Flex.TriggerSpecs {
			n += len(spec.TriggerData)
		}
		return n
	}
	if s.SourceType == SourceTypeNavigation {
		return navigationTriggerDataCardinality
	}
	return eventTriggerDataCardinality
}

// MaxReports is the cap on event-level reports for this source.
func (s *Source) MaxReports() int {
	if s.Flex != nil && s.Flex.MaxEventLevelReports != nil {
		return *s.Flex.MaxEventLevelReports
	}
	if s.SourceType == SourceTypeNavigation {
		return navigationMaxReports
	}
	return eventMaxReports
}

// ReportWindowEnds returns the event-level report window ends as offsets
// from EventTime.
func (s *Source) ReportWindowEnds() []time.Duration {
	if s.Flex != nil && s.Flex.Windows != nil {
		return s.Flex.Windows.Ends
	}
	last := s.EventReportWindow.Sub(s.EventTime)
	if s.SourceType != SourceTypeNavigation {
		return []time.Duration{last}
	}
	ends := make([]time.Duration, 0, len(navigationEarlyWindows)+1)
	for _, end := range navigationEarlyWindows {
		if end < last {
			ends = append(ends, end)
		}
	}
	return append(ends, last)
}

// ReportingTime is when a report landing in the given window is sent.
func (s *Source) ReportingTime(windowEnd time.Duration) time.Time {
	return s.EventTime.Add(windowEnd + ReportingDelay)
}
