package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"registrar/internal/registration/models"
)

func (f *Fetcher) parseSource(item *models.WorkItem, enrollmentID, payload string) (*models.Source, error) {
	if err := f.schemas.validate(schemaSource, payload); err != nil {
		return nil, err
	}
	fs, err := decodeFields(payload)
	if err != nil {
		return nil, err
	}

	src := &models.Source{
		EnrollmentID:       enrollmentID,
		Registrant:         item.Registrant,
		RegistrationOrigin: item.RegistrationOrigin,
		RegistrationID:     item.RegistrationID,
		SourceType:         item.SourceType,
		EventTime:          item.RequestTime,
		PublisherType:      item.Type.Surface(),
		AttributionMode:    models.AttributionTruthfully,
		Status:             models.SourceActive,
	}
	if src.SourceType == "" {
		src.SourceType = models.SourceTypeEvent
	}
	if src.Publisher, err = Publisher(item.TopOrigin, item.Type.IsWeb()); err != nil {
		return nil, fmt.Errorf("top origin: %w", err)
	}

	if err := f.parseSourceDestinations(fs, src); err != nil {
		return nil, err
	}
	if item.Type.IsWeb() {
		if err := checkWebDestinationConsistency(item, src); err != nil {
			return nil, err
		}
	}

	if id := fs.optionalUnsigned("source_event_id"); id != nil {
		src.EventID = *id
	}
	if src.Priority, err = fs.int64Field("priority", 0); err != nil {
		return nil, err
	}

	if err := parseSourceWindows(fs, src); err != nil {
		return nil, err
	}

	if fs.has("filter_data") {
		if src.FilterData, err = parseFilterMap(fs["filter_data"], false); err != nil {
			return nil, fmt.Errorf("filter_data: %w", err)
		}
	}
	if fs.has("aggregation_keys") {
		if src.AggregationKeys, err = parseAggregationKeys(fs["aggregation_keys"]); err != nil {
			return nil, err
		}
	}
	if fs.has("shared_aggregation_keys") {
		if err := json.Unmarshal(fs["shared_aggregation_keys"], &src.SharedAggregationKeys); err != nil {
			return nil, errors.New("shared_aggregation_keys must be a string array")
		}
		if len(src.SharedAggregationKeys) > maxAggregateKeys {
			return nil, fmt.Errorf("shared_aggregation_keys has %d entries, max %d", len(src.SharedAggregationKeys), maxAggregateKeys)
		}
	}

	if src.DebugReporting, err = fs.boolean("debug_reporting"); err != nil {
		return nil, err
	}
	if src.DropSourceIfInstalled, err = fs.boolean("drop_source_if_installed"); err != nil {
		return nil, err
	}
	if f.debugKeysPermitted(item, enrollmentID) {
		src.DebugKey = fs.optionalUnsigned("debug_key")
		if joinKey, ok, err := fs.str("debug_join_key"); err != nil {
			return nil, err
		} else if ok {
			src.DebugJoinKey = joinKey
		}
	}

	if err := parseFlex(fs, src); err != nil {
		return nil, err
	}
	return src, nil
}

func (f *Fetcher) parseSourceDestinations(fs fields, src *models.Source) error {
	if dest, ok, err := fs.str("destination"); err != nil {
		return err
	} else if ok {
		app, err := AppDestination(dest)
		if err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		src.AppDestinations = []string{app}
	}
	if fs.has("web_destination") {
		web, err := parseWebDestinations(fs["web_destination"], f.cfg.MaxWebDestinations)
		if err != nil {
			return err
		}
		src.WebDestinations = web
	}
	if len(src.AppDestinations) == 0 && len(src.WebDestinations) == 0 {
		return errors.New("source declares no destination")
	}
	return nil
}

// checkWebDestinationConsistency compares destinations asserted by the
// calling web context with the payload.
func checkWebDestinationConsistency(item *models.WorkItem, src *models.Source) error {
	if item.OsDestination != "" && len(src.AppDestinations) > 0 {
		asserted, err := AppDestination(item.OsDestination)
		if err != nil {
			return fmt.Errorf("os destination: %w", err)
		}
		if asserted != src.AppDestinations[0] {
			return fmt.Errorf("app destination %q does not match asserted %q", src.AppDestinations[0], asserted)
		}
	}
	if item.WebDestination != "" && len(src.WebDestinations) > 0 {
		asserted, err := Site(item.WebDestination)
		if err != nil {
			return fmt.Errorf("web destination: %w", err)
		}
		if !slices.Contains(src.WebDestinations, asserted) {
			return fmt.Errorf("web destinations do not include asserted %q", asserted)
		}
	}
	return nil
}

func parseSourceWindows(fs fields, src *models.Source) error {
	expirySeconds, err := fs.int64Field("expiry", int64(maxExpiry/time.Second))
	if err != nil {
		return err
	}
	expiry := normalizeExpiry(expirySeconds, src.SourceType)
	src.ExpiryTime = src.EventTime.Add(expiry)

	if fs.has("event_report_window") && fs.has("event_report_windows") {
		return errors.New("event_report_window and event_report_windows are mutually exclusive")
	}
	eventWindow, err := fs.int64Field("event_report_window", 0)
	if err != nil {
		return err
	}
	src.EventReportWindow = src.EventTime.Add(normalizeReportWindow(eventWindow, fs.has("event_report_window"), expiry))

	aggWindow, err := fs.int64Field("aggregatable_report_window", 0)
	if err != nil {
		return err
	}
	src.AggregatableReportWindow = src.EventTime.Add(normalizeReportWindow(aggWindow, fs.has("aggregatable_report_window"), expiry))

	installWindow, err := fs.int64Field("install_attribution_window", int64(maxInstallAttributionWindow/time.Second))
	if err != nil {
		return err
	}
	src.InstallAttributionWindow = clampSeconds(installWindow, minInstallAttributionWindow, maxInstallAttributionWindow)

	cooldown, err := fs.int64Field("post_install_exclusivity_window", 0)
	if err != nil {
		return err
	}
	src.InstallCooldownWindow = clampSeconds(cooldown, minPostInstallExclusivity, maxPostInstallExclusivity)
	return nil
}

type rawWindows struct {
	StartTime *int64  `json:"start_time"`
	EndTimes  []int64 `json:"end_times"`
}

func parseWindows(raw json.RawMessage, expiry time.Duration) (*models.ReportWindows, error) {
	var rw rawWindows
	if err := json.Unmarshal(raw, &rw); err != nil {
		return nil, errors.New("event_report_windows must be an object")
	}
	if len(rw.EndTimes) == 0 || len(rw.EndTimes) > maxFlexWindows {
		return nil, fmt.Errorf("event_report_windows needs 1..%d end_times", maxFlexWindows)
	}
	windows := &models.ReportWindows{Ends: make([]time.Duration, 0, len(rw.EndTimes))}
	if rw.StartTime != nil {
		if *rw.StartTime < 0 {
			return nil, errors.New("event_report_windows start_time must not be negative")
		}
		windows.Start = time.Duration(*rw.StartTime) * time.Second
	}
	prev := windows.Start
	for i, end := range rw.EndTimes {
		if i > 0 && end <= rw.EndTimes[i-1] {
			return nil, errors.New("event_report_windows end_times must strictly increase")
		}
		clamped := clampSeconds(end, minFlexWindowEnd, expiry)
		if clamped <= prev {
			return nil, errors.New("event_report_windows end_times collapse after clamping")
		}
		windows.Ends = append(windows.Ends, clamped)
		prev = clamped
	}
	return windows, nil
}

type rawTriggerSpec struct {
	TriggerData           []uint32        `json:"trigger_data"`
	EventReportWindows    json.RawMessage `json:"event_report_windows"`
	SummaryWindowOperator string          `json:"summary_window_operator"`
	SummaryBuckets        []uint32        `json:"summary_buckets"`
}

// parseFlex reads the flexible event-level reporting block.
func parseFlex(fs fields, src *models.Source) error {
	hasReports := fs.has("max_event_level_reports")
	hasWindows := fs.has("event_report_windows")
	hasSpecs := fs.has("trigger_specs")
	if !hasReports && !hasWindows && !hasSpecs {
		return nil
	}
	flex := &models.FlexConfig{}
	src.Flex = flex
	expiry := src.ExpiryTime.Sub(src.EventTime)

	if hasReports {
		reports, err := fs.int64Field("max_event_level_reports", 0)
		if err != nil {
			return err
		}
		if reports < 0 || reports > maxEventLevelReports {
			return fmt.Errorf("max_event_level_reports must be in [0, %d]", maxEventLevelReports)
		}
		n := int(reports)
		flex.MaxEventLevelReports = &n
	}
	if hasWindows {
		windows, err := parseWindows(fs["event_report_windows"], expiry)
		if err != nil {
			return err
		}
		flex.Windows = windows
		src.EventReportWindow = src.EventTime.Add(windows.Ends[len(windows.Ends)-1])
	}
	if !hasSpecs {
		return nil
	}

	var specs []rawTriggerSpec
	if err := json.Unmarshal(fs["trigger_specs"], &specs); err != nil {
		return errors.New("trigger_specs must be an array of objects")
	}
	if len(specs) == 0 || len(specs) > maxTriggerSpecs {
		return fmt.Errorf("trigger_specs needs 1..%d entries", maxTriggerSpecs)
	}
	seen := make(map[uint32]struct{})
	maxReports := src.MaxReports()
	for _, rs := range specs {
		spec := models.TriggerSpec{
			TriggerData:           rs.TriggerData,
			SummaryWindowOperator: models.SummaryCount,
		}
		if len(rs.TriggerData) == 0 {
			return errors.New("trigger_specs entry needs trigger_data")
		}
		for _, td := range rs.TriggerData {
			if _, dup := seen[td]; dup {
				return fmt.Errorf("trigger data %d appears in more than one spec", td)
			}
			seen[td] = struct{}{}
		}
		if len(rs.EventReportWindows) > 0 && string(rs.EventReportWindows) != "null" {
			windows, err := parseWindows(rs.EventReportWindows, expiry)
			if err != nil {
				return fmt.Errorf("trigger_specs: %w", err)
			}
			spec.Windows = windows
		}
		switch models.SummaryOperator(rs.SummaryWindowOperator) {
		case "", models.SummaryCount:
		case models.SummaryValueSum:
			spec.SummaryWindowOperator = models.SummaryValueSum
		default:
			return fmt.Errorf("unknown summary_window_operator %q", rs.SummaryWindowOperator)
		}
		if len(rs.SummaryBuckets) > 0 {
			if len(rs.SummaryBuckets) > maxReports {
				return fmt.Errorf("summary_buckets has %d entries, max %d", len(rs.SummaryBuckets), maxReports)
			}
			for i := 1; i < len(rs.SummaryBuckets); i++ {
				if rs.SummaryBuckets[i] <= rs.SummaryBuckets[i-1] {
					return errors.New("summary_buckets must strictly increase")
				}
			}
			spec.SummaryBuckets = rs.SummaryBuckets
		} else {
			spec.SummaryBuckets = defaultBuckets(maxReports)
		}
		flex.TriggerSpecs = append(flex.TriggerSpecs, spec)
	}
	if len(seen) > maxTriggerDataCardinality {
		return fmt.Errorf("trigger_specs declare %d trigger data values, max %d", len(seen), maxTriggerDataCardinality)
	}
	return nil
}

func defaultBuckets(maxReports int) []uint32 {
	buckets := make([]uint32, maxReports)
	for i := range buckets {
		buckets[i] = uint32(i + 1)
	}
	return buckets
}
