package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"

	"registrar/internal/registration/models"
)

func (f *Fetcher) parseTrigger(item *models.WorkItem, enrollmentID, payload string) (*models.Trigger, error) {
	if err := f.schemas.validate(schemaTrigger, payload); err != nil {
		return nil, err
	}
	fs, err := decodeFields(payload)
	if err != nil {
		return nil, err
	}

	trig := &models.Trigger{
		EnrollmentID:       enrollmentID,
		Registrant:         item.Registrant,
		RegistrationOrigin: item.RegistrationOrigin,
		RegistrationID:     item.RegistrationID,
		TriggerTime:        item.RequestTime,
		DestinationType:    item.Type.Surface(),
	}
	if trig.AttributionDestination, err = Publisher(item.TopOrigin, item.Type.IsWeb()); err != nil {
		return nil, fmt.Errorf("top origin: %w", err)
	}

	if fs.has("event_trigger_data") {
		if trig.EventTriggers, err = parseEventTriggers(fs["event_trigger_data"]); err != nil {
			return nil, err
		}
	}
	if fs.has("aggregatable_trigger_data") {
		if trig.AggregatableTriggerData, err = parseAggregatableTriggerData(fs["aggregatable_trigger_data"]); err != nil {
			return nil, err
		}
	}
	if fs.has("aggregatable_values") {
		if trig.AggregatableValues, err = parseAggregatableValues(fs["aggregatable_values"]); err != nil {
			return nil, err
		}
	}
	if fs.has("aggregatable_deduplication_keys") {
		if trig.AggregateDeduplicationKeys, err = parseAggregateDeduplicationKeys(fs["aggregatable_deduplication_keys"]); err != nil {
			return nil, err
		}
	}
	if trig.Filters, err = fs.filterSet("filters"); err != nil {
		return nil, err
	}
	if trig.NotFilters, err = fs.filterSet("not_filters"); err != nil {
		return nil, err
	}
	if trig.DebugReporting, err = fs.boolean("debug_reporting"); err != nil {
		return nil, err
	}
	if f.debugKeysPermitted(item, enrollmentID) {
		trig.DebugKey = fs.optionalUnsigned("debug_key")
		if joinKey, ok, err := fs.str("debug_join_key"); err != nil {
			return nil, err
		} else if ok {
			trig.DebugJoinKey = joinKey
		}
	}
	return trig, nil
}

func decodeObjects(raw json.RawMessage, name string) ([]fields, error) {
	var entries []fields
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%s must be an array of objects", name)
	}
	if len(entries) > maxAggregatableEntries {
		return nil, fmt.Errorf("%s has %d entries, max %d", name, len(entries), maxAggregatableEntries)
	}
	for _, e := range entries {
		if e == nil {
			return nil, fmt.Errorf("%s must be an array of objects", name)
		}
	}
	return entries, nil
}

func parseEventTriggers(raw json.RawMessage) ([]models.EventTrigger, error) {
	entries, err := decodeObjects(raw, "event_trigger_data")
	if err != nil {
		return nil, err
	}
	out := make([]models.EventTrigger, 0, len(entries))
	for _, e := range entries {
		var et models.EventTrigger
		if tok, ok := e.token("trigger_data"); ok {
			v, ok := models.ParseUnsigned64(tok)
			if !ok {
				return nil, fmt.Errorf("trigger_data %q is not an unsigned 64-bit value", tok)
			}
			et.TriggerData = v
		}
		if et.Priority, err = e.int64Field("priority", 0); err != nil {
			return nil, err
		}
		if e.has("value") {
			v, err := e.int64Field("value", 0)
			if err != nil || v < 1 {
				return nil, errors.New("event trigger value must be a positive integer")
			}
			u := uint64(v)
			et.Value = &u
		}
		et.DeduplicationKey = e.optionalUnsigned("deduplication_key")
		if et.Filters, err = e.filterSet("filters"); err != nil {
			return nil, err
		}
		if et.NotFilters, err = e.filterSet("not_filters"); err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

func parseAggregatableTriggerData(raw json.RawMessage) ([]models.AggregatableTriggerData, error) {
	entries, err := decodeObjects(raw, "aggregatable_trigger_data")
	if err != nil {
		return nil, err
	}
	out := make([]models.AggregatableTriggerData, 0, len(entries))
	for _, e := range entries {
		var td models.AggregatableTriggerData
		piece, _, err := e.str("key_piece")
		if err != nil {
			return nil, err
		}
		if !validKeyPiece(piece) {
			return nil, fmt.Errorf("invalid key_piece %q", piece)
		}
		td.KeyPiece = piece
		if e.has("source_keys") {
			if err := json.Unmarshal(e["source_keys"], &td.SourceKeys); err != nil {
				return nil, errors.New("source_keys must be a string array")
			}
			if len(td.SourceKeys) > maxAggregateKeys {
				return nil, fmt.Errorf("source_keys has %d entries, max %d", len(td.SourceKeys), maxAggregateKeys)
			}
			for _, key := range td.SourceKeys {
				if err := validateKeyID(key); err != nil {
					return nil, err
				}
			}
		}
		if td.Filters, err = e.filterSet("filters"); err != nil {
			return nil, err
		}
		if td.NotFilters, err = e.filterSet("not_filters"); err != nil {
			return nil, err
		}
		out = append(out, td)
	}
	return out, nil
}

func parseAggregatableValues(raw json.RawMessage) (map[string]int, error) {
	var values map[string]int
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.New("aggregatable_values must map key ids to integers")
	}
	if len(values) > maxAggregateKeys {
		return nil, fmt.Errorf("aggregatable_values has %d entries, max %d", len(values), maxAggregateKeys)
	}
	for id, v := range values {
		if err := validateKeyID(id); err != nil {
			return nil, err
		}
		if v < 1 || v > maxAggregatableValue {
			return nil, fmt.Errorf("aggregatable value for %q must be in [1, %d]", id, maxAggregatableValue)
		}
	}
	return values, nil
}

func parseAggregateDeduplicationKeys(raw json.RawMessage) ([]models.AggregateDeduplicationKey, error) {
	entries, err := decodeObjects(raw, "aggregatable_deduplication_keys")
	if err != nil {
		return nil, err
	}
	out := make([]models.AggregateDeduplicationKey, 0, len(entries))
	for _, e := range entries {
		var key models.AggregateDeduplicationKey
		if tok, ok := e.token("deduplication_key"); ok {
			v, ok := parseDeduplicationKey(tok)
			if !ok {
				return nil, fmt.Errorf("deduplication_key %q is invalid", tok)
			}
			key.DeduplicationKey = &v
		}
		if key.Filters, err = e.filterSet("filters"); err != nil {
			return nil, err
		}
		if key.NotFilters, err = e.filterSet("not_filters"); err != nil {
			return nil, err
		}
		out = append(out, key)
	}
	return out, nil
}

// parseDeduplicationKey accepts only non-negative decimal values below 2^64.
func parseDeduplicationKey(tok string) (uint64, bool) {
	if len(tok) > 0 && tok[0] == '-' {
		return 0, false
	}
	return models.ParseUnsigned64(tok)
}
