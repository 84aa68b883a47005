package documents

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/Palpita209/Palpita209-sub001/internal/observability"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/cache"
	"github.com/Palpita209/Palpita209-sub001/internal/shared"
)

// Reader describes the read side used by Service.
type Reader interface {
	GetPO(ctx context.Context, id int64) (PODetails, error)
	GetPAR(ctx context.Context, id int64) (PARDetails, error)
	ListPOs(ctx context.Context, filter ListFilter) ([]POSummary, error)
	ListPARs(ctx context.Context, filter ListFilter) ([]PARSummary, error)
	ListRecipients(ctx context.Context) ([]Recipient, error)
	RepairTotals(ctx context.Context, kind Kind) (int64, error)
}

// RepositoryPort is implemented by *Repository.
type RepositoryPort interface {
	Store
	Reader
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort receives save and repair counts.
type MetricsPort interface {
	ObserveSave(kind, outcome string)
	ObserveRepair(kind string, n int)
}

// Mode selects the endpoint semantics of a save.
type Mode int

const (
	// ModeSave inserts, or updates when an id is supplied. Blank items are rejected.
	ModeSave Mode = iota
	// ModeUpdate requires an id. Blank items are skipped.
	ModeUpdate
)

func (m Mode) policy() ItemPolicy {
	if m == ModeUpdate {
		return PolicySkip
	}
	return PolicyReject
}

// Service orchestrates validation, the transactional write and the read models.
type Service struct {
	repo       RepositoryPort
	normalizer *Normalizer
	writer     *Writer
	cache      *cache.Cache
	audit      AuditPort
	metrics    MetricsPort
	logger     *slog.Logger
}

// NewService constructs the documents service. cache, audit and metrics may be nil.
func NewService(repo RepositoryPort, normalizer *Normalizer, c *cache.Cache, audit AuditPort, metrics MetricsPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		writer:     NewWriter(repo, logger),
		cache:      c,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
	}
}

// Save validates raw and writes it.
func (s *Service) Save(ctx context.Context, kind Kind, mode Mode, raw []byte) (Result, error) {
	sub, err := s.normalizer.Normalize(kind, raw, mode.policy())
	if err == nil && mode == ModeUpdate && sub.TargetID == 0 {
		err = missingField("id")
	}
	if err != nil {
		s.observe(kind, err)
		return Result{}, err
	}
	if len(sub.Dropped) > 0 {
		s.logger.Info("skipped items without description",
			slog.String("kind", string(kind)),
			slog.String("number", sub.Record.Number),
			slog.Any("positions", sub.Dropped))
	}

	res, err := s.writer.Write(ctx, sub.Record, sub.TargetID)
	if err != nil {
		s.observe(kind, err)
		return Result{}, err
	}
	s.afterCommit(ctx, res, sub.Dropped)
	return res, nil
}

func (s *Service) afterCommit(ctx context.Context, res Result, dropped []int) {
	if err := s.cache.Bump(ctx, res.Kind.Scope()); err != nil {
		s.logger.Warn("bump cache version", slog.String("scope", res.Kind.Scope()), slog.Any("error", err))
	}
	outcome := observability.OutcomeUpdated
	action := string(res.Kind) + "_UPDATE"
	if res.Created {
		outcome = observability.OutcomeCreated
		action = string(res.Kind) + "_CREATE"
	}
	if s.metrics != nil {
		s.metrics.ObserveSave(string(res.Kind), outcome)
	}
	if s.audit == nil {
		return
	}
	meta := map[string]any{
		"number": res.Number,
		"total":  res.Total.String(),
		"items":  res.Items,
	}
	if res.UserID != 0 {
		meta["user_id"] = res.UserID
	}
	if len(dropped) > 0 {
		meta["dropped"] = dropped
	}
	entry := shared.AuditLog{Action: action, Entity: res.Kind.Scope(), EntityID: strconv.FormatInt(res.ID, 10), Meta: meta}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func (s *Service) observe(kind Kind, err error) {
	if s.metrics == nil {
		return
	}
	outcome := observability.OutcomeFailed
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		outcome = observability.OutcomeInvalid
	case errors.Is(err, ErrDuplicateKey):
		outcome = observability.OutcomeDuplicate
	}
	s.metrics.ObserveSave(string(kind), outcome)
}

// GetPO returns a purchase order, read through the cache.
func (s *Service) GetPO(ctx context.Context, id int64) (PODetails, error) {
	var out PODetails
	err := s.cached(ctx, KindPO, id, &out, func(ctx context.Context) (any, error) {
		return s.repo.GetPO(ctx, id)
	})
	return out, err
}

// GetPAR returns a receipt, read through the cache.
func (s *Service) GetPAR(ctx context.Context, id int64) (PARDetails, error) {
	var out PARDetails
	err := s.cached(ctx, KindPAR, id, &out, func(ctx context.Context) (any, error) {
		return s.repo.GetPAR(ctx, id)
	})
	return out, err
}

// cached falls back to the repository when Redis is unavailable.
func (s *Service) cached(ctx context.Context, kind Kind, id int64, dest any, loader func(context.Context) (any, error)) error {
	var loaderErr error
	load := func(ctx context.Context) (any, error) {
		v, err := loader(ctx)
		loaderErr = err
		return v, err
	}
	c := s.cache
	key, err := c.BuildKey(ctx, kind.Scope(), "details", strconv.FormatInt(id, 10))
	if err != nil {
		s.logger.Warn("build cache key", slog.String("scope", kind.Scope()), slog.Any("error", err))
		c = nil
	}
	err = c.FetchJSON(ctx, key, dest, load)
	if err == nil || c == nil || ctx.Err() != nil || loaderErr != nil {
		return err
	}
	s.logger.Warn("cache read", slog.String("key", key), slog.Any("error", err))
	var direct *cache.Cache
	return direct.FetchJSON(ctx, key, dest, loader)
}

// ListPOs returns purchase order summaries.
func (s *Service) ListPOs(ctx context.Context, filter ListFilter) ([]POSummary, error) {
	return s.repo.ListPOs(ctx, filter)
}

// ListPARs returns receipt summaries.
func (s *Service) ListPARs(ctx context.Context, filter ListFilter) ([]PARSummary, error) {
	return s.repo.ListPARs(ctx, filter)
}

// ListRecipients returns every known recipient.
func (s *Service) ListRecipients(ctx context.Context) ([]Recipient, error) {
	return s.repo.ListRecipients(ctx)
}

// ReconcileTotals rewrites drifted header totals of every kind and
// invalidates the cached reads of kinds that changed.
func (s *Service) ReconcileTotals(ctx context.Context) (map[Kind]int64, error) {
	repaired := make(map[Kind]int64, 2)
	for _, kind := range []Kind{KindPO, KindPAR} {
		n, err := s.repo.RepairTotals(ctx, kind)
		if err != nil {
			return repaired, err
		}
		repaired[kind] = n
		if n == 0 {
			continue
		}
		if s.metrics != nil {
			s.metrics.ObserveRepair(string(kind), int(n))
		}
		if err := s.cache.Bump(ctx, kind.Scope()); err != nil {
			s.logger.Warn("bump cache version", slog.String("scope", kind.Scope()), slog.Any("error", err))
		}
	}
	return repaired, nil
}
