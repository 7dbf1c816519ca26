// Package memory is an in-process registration store for tests and
// single-node development. Transactions are serialized by one lock and roll
// back by discarding a working copy.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

var (
	_ ports.TxRunner = (*Store)(nil)
	_ ports.Store    = (*txStore)(nil)
)

type state struct {
	items     []*models.WorkItem
	sources   []*models.Source
	triggers  []*models.Trigger
	reports   []*models.EventReport
	ledger    []*models.AttributionLedgerRow
	redirects map[string]int
}

func (s *state) clone() *state {
	return &state{
		items:     slices.Clone(s.items),
		sources:   slices.Clone(s.sources),
		triggers:  slices.Clone(s.triggers),
		reports:   slices.Clone(s.reports),
		ledger:    slices.Clone(s.ledger),
		redirects: maps.Clone(s.redirects),
	}
}

// Store implements ports.TxRunner.
type Store struct {
	mu      sync.Mutex
	state   *state
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout sets the budget applied to transactions whose context has no
// deadline. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		state:   &state{redirects: make(map[string]int)},
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn against a working copy of the store and publishes the copy
// only when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	working := s.state.clone()
	if err := fn(&txStore{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted before commit")
	}
	s.state = working
	return nil
}

// WorkItems returns copies of the queued items in insertion order.
func (s *Store) WorkItems() []models.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.state.items)
}

// Sources returns copies of the stored sources.
func (s *Store) Sources() []models.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.state.sources)
}

// Triggers returns copies of the stored triggers.
func (s *Store) Triggers() []models.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.state.triggers)
}

// EventReports returns copies of the stored event reports.
func (s *Store) EventReports() []models.EventReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.state.reports)
}

// Attributions returns copies of the attribution ledger.
func (s *Store) Attributions() []models.AttributionLedgerRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deref(s.state.ledger)
}

// RedirectCounter returns the stored counter for a chain and whether a row
// exists.
func (s *Store) RedirectCounter(registrationID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.state.redirects[registrationID]
	return n, ok
}

func deref[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, *v)
	}
	return out
}

// txStore is the ports.Store view handed to a transaction.
type txStore struct {
	state *state
}

func (t *txStore) NextEligibleWorkItem(_ context.Context, maxRetries int, excludedOrigins []string) (*models.WorkItem, error) {
	var next *models.WorkItem
	for _, item := range t.state.items {
		if item.RetryCount >= maxRetries || slices.Contains(excludedOrigins, item.RegistrationOrigin) {
			continue
		}
		if next == nil || item.RequestTime.Before(next.RequestTime) {
			next = item
		}
	}
	if next == nil {
		return nil, nil
	}
	out := *next
	return &out, nil
}

func (t *txStore) InsertWorkItem(_ context.Context, item *models.WorkItem) error {
	if item == nil {
		return fmt.Errorf("work item is required")
	}
	if t.indexOfItem(item.ID) >= 0 {
		return fmt.Errorf("work item %s: %w", item.ID, sentinel.ErrConflict)
	}
	stored := *item
	t.state.items = append(t.state.items, &stored)
	return nil
}

func (t *txStore) DeleteWorkItem(_ context.Context, id string) error {
	i := t.indexOfItem(id)
	if i < 0 {
		return fmt.Errorf("work item %s: %w", id, sentinel.ErrNotFound)
	}
	t.state.items = slices.Delete(t.state.items, i, i+1)
	return nil
}

func (t *txStore) IncrementRetryCount(_ context.Context, id string) error {
	i := t.indexOfItem(id)
	if i < 0 {
		return fmt.Errorf("work item %s: %w", id, sentinel.ErrNotFound)
	}
	updated := *t.state.items[i]
	updated.RetryCount++
	t.state.items[i] = &updated
	return nil
}

func (t *txStore) indexOfItem(id string) int {
	return slices.IndexFunc(t.state.items, func(it *models.WorkItem) bool { return it.ID == id })
}

func (t *txStore) InsertSource(_ context.Context, source *models.Source) error {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	stored := *source
	t.state.sources = append(t.state.sources, &stored)
	return nil
}

func (t *txStore) InsertTrigger(_ context.Context, trigger *models.Trigger) error {
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	stored := *trigger
	t.state.triggers = append(t.state.triggers, &stored)
	return nil
}

func (t *txStore) InsertEventReport(_ context.Context, report *models.EventReport) error {
	stored := *report
	t.state.reports = append(t.state.reports, &stored)
	return nil
}

func (t *txStore) InsertAttribution(_ context.Context, row *models.AttributionLedgerRow) error {
	stored := *row
	t.state.ledger = append(t.state.ledger, &stored)
	return nil
}

func (t *txStore) GetRedirectCounter(_ context.Context, registrationID string) (int, error) {
	if n, ok := t.state.redirects[registrationID]; ok {
		return n, nil
	}
	return models.DefaultRedirectCount, nil
}

func (t *txStore) PutRedirectCounter(_ context.Context, registrationID string, count int) error {
	t.state.redirects[registrationID] = count
	return nil
}
