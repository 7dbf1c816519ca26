package fetcher

import (
	"strconv"

	"github.com/sebdah/goldie/v2"

	"registrar/internal/registration/models"
)

// sourceSnapshot is the stable projection of a normalized Source compared
// against testdata/golden. Times are offsets from the event time so the
// snapshot does not depend on the test clock or server port.
type sourceSnapshot struct {
	EventID                  string            `json:"event_id"`
	AppDestinations          []string          `json:"app_destinations"`
	WebDestinations          []string          `json:"web_destinations"`
	Publisher                string            `json:"publisher"`
	EnrollmentID             string            `json:"enrollment_id"`
	SourceType               string            `json:"source_type"`
	Expiry                   string            `json:"expiry"`
	EventReportWindow        string            `json:"event_report_window"`
	AggregatableReportWindow string            `json:"aggregatable_report_window"`
	Priority                 int64             `json:"priority"`
	FilterData               models.FilterData `json:"filter_data"`
	AggregationKeys          map[string]string `json:"aggregation_keys"`
	InstallAttributionWindow string            `json:"install_attribution_window"`
	InstallCooldownWindow    string            `json:"install_cooldown_window"`
	DebugKey                 string            `json:"debug_key"`
	DebugReporting           bool              `json:"debug_reporting"`
	ReportWindowEnds         []string          `json:"report_window_ends"`
}

func snapshotOf(src *models.Source) sourceSnapshot {
	snap := sourceSnapshot{
		EventID:                  strconv.FormatUint(src.EventID, 10),
		AppDestinations:          src.AppDestinations,
		WebDestinations:          src.WebDestinations,
		Publisher:                src.Publisher,
		EnrollmentID:             src.EnrollmentID,
		SourceType:               string(src.SourceType),
		Expiry:                   src.ExpiryTime.Sub(src.EventTime).String(),
		EventReportWindow:        src.EventReportWindow.Sub(src.EventTime).String(),
		AggregatableReportWindow: src.AggregatableReportWindow.Sub(src.EventTime).String(),
		Priority:                 src.Priority,
		FilterData:               src.FilterData,
		AggregationKeys:          src.AggregationKeys,
		InstallAttributionWindow: src.InstallAttributionWindow.String(),
		InstallCooldownWindow:    src.InstallCooldownWindow.String(),
		DebugReporting:           src.DebugReporting,
	}
	if src.DebugKey != nil {
		snap.DebugKey = strconv.FormatUint(*src.DebugKey, 10)
	}
	for _, end := range src.ReportWindowEnds() {
		snap.ReportWindowEnds = append(snap.ReportWindowEnds, end.String())
	}
	return snap
}

func (s *FetcherSuite) TestNormalizedNavigationSourceGolden() {
	item := s.item(models.RegistrationAppSource)
	item.SourceType = models.SourceTypeNavigation
	item.DebugKeyAllowed = true
	src, err := s.fetchSource(item, `{
		"destination": "com.shop.app",
		"web_destination": ["https://www.shop.example", "https://checkout.shop.example"],
		"source_event_id": "-1",
		"priority": "-5",
		"expiry": "172800",
		"event_report_window": "3600",
		"filter_data": {"region": ["eu"], "campaign": ["summer", "sale"]},
		"aggregation_keys": {"revenue": "0X2a", "conversions": "0x159"},
		"install_attribution_window": "0",
		"debug_key": "123",
		"debug_reporting": true,
		"unrecognized_field": {"ignored": true}
	}`)
	s.Require().NoError(err)

	g := goldie.New(s.T(), goldie.WithFixtureDir("testdata/golden"))
	g.AssertJson(s.T(), "navigation_source", snapshotOf(src))
}
