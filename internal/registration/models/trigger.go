package models

import "time"

// FilterSet is a disjunction of filter maps; a trigger filter matches when
// any map matches.
type FilterSet []FilterData

// EventTrigger is one entry of event_trigger_data.
type EventTrigger struct {
	TriggerData      uint64
	Priority         int64
	Value            *uint64
	DeduplicationKey *uint64
	Filters          FilterSet
	NotFilters       FilterSet
}

// AggregatableTriggerData contributes a key piece to named source keys.
type AggregatableTriggerData struct {
	KeyPiece   string
	SourceKeys []string
	Filters    FilterSet
	NotFilters FilterSet
}

// AggregateDeduplicationKey is one entry of aggregatable_deduplication_keys.
type AggregateDeduplicationKey struct {
	DeduplicationKey *uint64
	Filters          FilterSet
	NotFilters       FilterSet
}

// Trigger is a validated attribution trigger.
type Trigger struct {
	ID                         string
	AttributionDestination     string
	DestinationType            Surface
	EnrollmentID               string
	Registrant                 string
	RegistrationOrigin         string
	RegistrationID             string
	TriggerTime                time.Time
	EventTriggers              []EventTrigger
	AggregatableTriggerData    []AggregatableTriggerData
	AggregatableValues         map[string]int
	AggregateDeduplicationKeys []AggregateDeduplicationKey
	Filters                    FilterSet
	NotFilters                 FilterSet
	DebugKey                   *uint64
	DebugJoinKey               string
	DebugReporting             bool
}
