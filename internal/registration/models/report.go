package models

import (
	"time"

	"github.com/google/uuid"
)

// FakeReport is a synthetic outcome produced by the noise decision. It never
// references a real trigger.
type FakeReport struct {
	TriggerData   uint64
	ReportingTime time.Time
	Destinations  []string
}

// EventReport is a pending event-level report row.
type EventReport struct {
	ID                      string
	SourceID                string
	SourceEventID           uint64
	EnrollmentID            string
	AttributionDestinations []string
	TriggerData             uint64
	TriggerTime             time.Time
	ReportingTime           time.Time
	SourceType              SourceType
	Status                  ReportStatus
	RandomizedResponse      bool
}

// AttributionLedgerRow records one attribution consumed against rate limits.
type AttributionLedgerRow struct {
	ID                 string
	SourceID           string
	Publisher          string
	Destination        string
	EnrollmentID       string
	RegistrationOrigin string
	TriggerTime        time.Time
}

// FakeEventReport converts a fake report into the pending report row stored
// for src. The trigger time of a fake report is the source event time.
func FakeEventReport(src *Source, fake FakeReport) *EventReport {
	return &EventReport{
		ID:                      uuid.NewString(),
		SourceID:                src.ID,
		SourceEventID:           src.EventID,
		EnrollmentID:            src.EnrollmentID,
		AttributionDestinations: fake.Destinations,
		TriggerData:             fake.TriggerData,
		TriggerTime:             src.EventTime,
		ReportingTime:           fake.ReportingTime,
		SourceType:              src.SourceType,
		Status:                  ReportPending,
		RandomizedResponse:      true,
	}
}

// FakeAttribution builds the ledger row charged against destination for a
// source whose attribution mode is not truthful.
func FakeAttribution(src *Source, destination string) *AttributionLedgerRow {
	return &AttributionLedgerRow{
		ID:                 uuid.NewString(),
		SourceID:           src.ID,
		Publisher:          src.Publisher,
		Destination:        destination,
		EnrollmentID:       src.EnrollmentID,
		RegistrationOrigin: src.RegistrationOrigin,
		TriggerTime:        src.EventTime,
	}
}
