// Package postgres persists the registration queue and its outputs in
// PostgreSQL. A Store wraps one transaction (or the bare pool for reads);
// TxRunner in cmd/server owns begin and commit.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	"registrar/pkg/platform/sentinel"
)

//go:embed schema.sql
var schema string

const pgSerializationFailure = "40001"

var _ ports.Store = (*Store)(nil)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements ports.Store over a DBTX.
type Store struct {
	db DBTX
}

// New wraps db. Pass the *sql.Tx of the enclosing transaction.
func New(db DBTX) *Store {
	return &Store{db: db}
}

// Migrate creates the registration tables when they do not exist.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply registration schema: %w", err)
	}
	return nil
}

// IsSerializationFailure reports whether err is a serializable-isolation
// conflict that the caller may retry.
func IsSerializationFailure(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgSerializationFailure
}

const workItemColumns = `id, registration_uri, registration_origin, registration_id, registration_type,
	source_type, registrant, top_origin, os_destination, web_destination, verified_destination,
	request_time, retry_count, debug_key_allowed`

const nextEligibleQuery = `SELECT ` + workItemColumns + `
FROM registration_work_items
WHERE retry_count < $1 AND NOT (registration_origin = ANY($2))
ORDER BY request_time, created_at
LIMIT 1
FOR UPDATE SKIP LOCKED`

func (s *Store) NextEligibleWorkItem(ctx context.Context, maxRetries int, excludedOrigins []string) (*models.WorkItem, error) {
	if excludedOrigins == nil {
		excludedOrigins = []string{}
	}
	var (
		item       models.WorkItem
		typ        string
		sourceType string
	)
	err := s.db.QueryRowContext(ctx, nextEligibleQuery, maxRetries, pq.Array(excludedOrigins)).Scan(
		&item.ID, &item.RegistrationURI, &item.RegistrationOrigin, &item.RegistrationID, &typ,
		&sourceType, &item.Registrant, &item.TopOrigin, &item.OsDestination, &item.WebDestination,
		&item.VerifiedDestination, &item.RequestTime, &item.RetryCount, &item.DebugKeyAllowed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next work item: %w", err)
	}
	item.Type = models.RegistrationType(typ)
	item.SourceType = models.SourceType(sourceType)
	return &item, nil
}

func (s *Store) InsertWorkItem(ctx context.Context, item *models.WorkItem) error {
	if item == nil {
		return fmt.Errorf("work item is required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO registration_work_items (`+workItemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		item.ID, item.RegistrationURI, item.RegistrationOrigin, item.RegistrationID, string(item.Type),
		string(item.SourceType), item.Registrant, item.TopOrigin, item.OsDestination, item.WebDestination,
		item.VerifiedDestination, item.RequestTime, item.RetryCount, item.DebugKeyAllowed,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("work item %s: %w", item.ID, sentinel.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert work item: %w", err)
	}
	return nil
}

func (s *Store) DeleteWorkItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM registration_work_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete work item: %w", err)
	}
	return requireRow(res, "work item "+id)
}

func (s *Store) IncrementRetryCount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE registration_work_items SET retry_count = retry_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment retry count: %w", err)
	}
	return requireRow(res, "work item "+id)
}

func (s *Store) InsertSource(ctx context.Context, src *models.Source) error {
	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	filterData, err := jsonb(src.FilterData)
	if err != nil {
		return err
	}
	aggregationKeys, err := jsonb(src.AggregationKeys)
	if err != nil {
		return err
	}
	flex, err := jsonb(src.Flex)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO registration_sources (
		id, event_id, app_destinations, web_destinations, enrollment_id, publisher, publisher_type,
		registrant, registration_origin, registration_id, source_type, event_time, expiry_time,
		event_report_window, aggregatable_report_window, priority, filter_data, aggregation_keys,
		shared_aggregation_keys, debug_key, debug_join_key, debug_reporting,
		install_attribution_window_s, install_cooldown_window_s, drop_source_if_installed,
		attribution_mode, status, flex
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
		$19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`,
		src.ID, unsigned(src.EventID), pq.Array(nonNil(src.AppDestinations)), pq.Array(nonNil(src.WebDestinations)),
		src.EnrollmentID, src.Publisher, string(src.PublisherType), src.Registrant, src.RegistrationOrigin,
		src.RegistrationID, string(src.SourceType), src.EventTime, src.ExpiryTime, src.EventReportWindow,
		src.AggregatableReportWindow, src.Priority, filterData, aggregationKeys,
		pq.Array(nonNil(src.SharedAggregationKeys)), nullUnsigned(src.DebugKey), src.DebugJoinKey, src.DebugReporting,
		int64(src.InstallAttributionWindow.Seconds()), int64(src.InstallCooldownWindow.Seconds()),
		src.DropSourceIfInstalled, string(src.AttributionMode), string(src.Status), flex,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (s *Store) InsertTrigger(ctx context.Context, trig *models.Trigger) error {
	if trig.ID == "" {
		trig.ID = uuid.NewString()
	}
	docs := make([]any, 0, 6)
	for _, v := range []any{trig.EventTriggers, trig.AggregatableTriggerData, trig.AggregatableValues,
		trig.AggregateDeduplicationKeys, trig.Filters, trig.NotFilters} {
		doc, err := jsonb(v)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO registration_triggers (
		id, attribution_destination, destination_type, enrollment_id, registrant, registration_origin,
		registration_id, trigger_time, event_triggers, aggregatable_trigger_data, aggregatable_values,
		aggregate_deduplication_keys, filters, not_filters, debug_key, debug_join_key, debug_reporting
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		trig.ID, trig.AttributionDestination, string(trig.DestinationType), trig.EnrollmentID, trig.Registrant,
		trig.RegistrationOrigin, trig.RegistrationID, trig.TriggerTime,
		docs[0], docs[1], docs[2], docs[3], docs[4], docs[5],
		nullUnsigned(trig.DebugKey), trig.DebugJoinKey, trig.DebugReporting,
	)
	if err != nil {
		return fmt.Errorf("insert trigger: %w", err)
	}
	return nil
}

func (s *Store) InsertEventReport(ctx context.Context, r *models.EventReport) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO event_reports (
		id, source_id, source_event_id, enrollment_id, attribution_destinations, trigger_data,
		trigger_time, reporting_time, source_type, status, randomized_response
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		r.ID, r.SourceID, unsigned(r.SourceEventID), r.EnrollmentID, pq.Array(nonNil(r.AttributionDestinations)),
		unsigned(r.TriggerData), r.TriggerTime, r.ReportingTime, string(r.SourceType), string(r.Status),
		r.RandomizedResponse,
	)
	if err != nil {
		return fmt.Errorf("insert event report: %w", err)
	}
	return nil
}

func (s *Store) InsertAttribution(ctx context.Context, row *models.AttributionLedgerRow) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO attributions (
		id, source_id, publisher, destination, enrollment_id, registration_origin, trigger_time
	) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		row.ID, row.SourceID, row.Publisher, row.Destination, row.EnrollmentID, row.RegistrationOrigin, row.TriggerTime,
	)
	if err != nil {
		return fmt.Errorf("insert attribution: %w", err)
	}
	return nil
}

func (s *Store) GetRedirectCounter(ctx context.Context, registrationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT redirect_count FROM redirect_counters WHERE registration_id = $1`, registrationID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultRedirectCount, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select redirect counter: %w", err)
	}
	return n, nil
}

func (s *Store) PutRedirectCounter(ctx context.Context, registrationID string, count int) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO redirect_counters (registration_id, redirect_count)
		VALUES ($1, $2)
		ON CONFLICT (registration_id) DO UPDATE SET redirect_count = EXCLUDED.redirect_count`,
		registrationID, count)
	if err != nil {
		return fmt.Errorf("upsert redirect counter: %w", err)
	}
	return nil
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}

// jsonb encodes v for a JSONB column; nil maps and slices become NULL.
func jsonb(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode jsonb: %w", err)
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return string(raw), nil
}

// unsigned renders a uint64 for a NUMERIC(20,0) column.
func unsigned(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func nullUnsigned(v *uint64) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: unsigned(*v), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
