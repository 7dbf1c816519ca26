// Package service accepts registration requests from registrants and queues
// them as work items for the runner.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/ports"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

// Request is the enqueue payload.
type Request struct {
	RegistrationURI     string `json:"registration_uri"`
	RegistrationType    string `json:"registration_type"`
	SourceType          string `json:"source_type,omitempty"`
	TopOrigin           string `json:"top_origin"`
	OsDestination       string `json:"os_destination,omitempty"`
	WebDestination      string `json:"web_destination,omitempty"`
	VerifiedDestination string `json:"verified_destination,omitempty"`
	DebugKeyAllowed     bool   `json:"debug_key_allowed,omitempty"`
}

// Service validates enqueue requests and inserts work items.
type Service struct {
	tx      ports.TxRunner
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(tx ports.TxRunner, opts ...Option) (*Service, error) {
	if tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	s := &Service{tx: tx, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Enqueue validates req and queues it under a fresh registration chain. The
// request time is the request-scoped clock.
func (s *Service) Enqueue(ctx context.Context, registrant string, req Request) (*models.WorkItem, error) {
	item, err := s.buildItem(ctx, registrant, req)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(store ports.Store) error {
		return store.InsertWorkItem(ctx, item)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue registration")
	}

	s.metrics.IncEnqueued(string(item.Type))
	s.logger.InfoContext(ctx, "registration enqueued",
		"work_item_id", item.ID,
		"registration_id", item.RegistrationID,
		"registration_origin", item.RegistrationOrigin,
		"type", item.Type,
		"request_id", requestcontext.RequestID(ctx),
	)
	return item, nil
}

func (s *Service) buildItem(ctx context.Context, registrant string, req Request) (*models.WorkItem, error) {
	if registrant == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "registrant is required")
	}
	if err := validateURI(req.RegistrationURI); err != nil {
		return nil, err
	}
	typ, err := models.ParseRegistrationType(req.RegistrationType)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "registration_type is invalid")
	}
	if strings.TrimSpace(req.TopOrigin) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "top_origin is required")
	}

	item := models.NewWorkItem(req.RegistrationURI, typ, requestcontext.Now(ctx))
	item.Registrant = registrant
	item.TopOrigin = req.TopOrigin
	item.OsDestination = req.OsDestination
	item.WebDestination = req.WebDestination
	item.VerifiedDestination = req.VerifiedDestination
	item.DebugKeyAllowed = req.DebugKeyAllowed

	switch {
	case typ.IsSource():
		sourceType, err := models.ParseSourceType(req.SourceType)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeValidation, "source_type is invalid")
		}
		item.SourceType = sourceType
		if typ.IsWeb() && req.OsDestination == "" && req.WebDestination == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "web sources need os_destination or web_destination")
		}
	case req.SourceType != "":
		return nil, dErrors.New(dErrors.CodeValidation, "source_type applies to sources only")
	}
	return item, nil
}

func validateURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "registration_uri must be an absolute URL")
	}
	if u.Scheme != "https" {
		return dErrors.New(dErrors.CodeValidation, "registration_uri must use https")
	}
	return nil
}
