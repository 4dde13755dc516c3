package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog"

	"civicroute/metrics"
	"civicroute/models"
)

// slaLockKey guards the periodic scan when several instances run
const slaLockKey = "civicroute:sla-scan"

// BreachStore is the complaint surface the SLA scanner needs
type BreachStore interface {
	ListUnresolved(ctx context.Context, limit int) ([]models.Complaint, error)
	ClaimBreach(ctx context.Context, complaintID int64, at time.Time) (bool, error)
}

// BreachNotifier receives the exactly-once breach signal per episode
type BreachNotifier interface {
	QueueForComplaint(ctx context.Context, kind models.NotificationKind, enriched models.EnrichedComplaint, message string) error
}

// ScanResult summarizes one SLA evaluation pass
type ScanResult struct {
	Scanned       int `json:"scanned"`
	Breached      int `json:"breached"`
	NewlyBreached int `json:"newly_breached"`
	Warnings      int `json:"warnings"`
}

// SLAService evaluates complaints against their deadlines. Classification is
// pure; ScanOnce adds the durable first-transition-into-breach signal, claimed
// through a conditional update so a complaint that stays breached across ticks
// signals once per episode even with several scanner instances running.
type SLAService struct {
	store    BreachStore
	enricher *EnrichmentService
	notifier BreachNotifier
	policy   *models.EnrichmentPolicy
	locker   *redislock.Client
	logger   zerolog.Logger

	scanLimit int
}

// NewSLAService creates a new SLA evaluator. locker may be nil; the scan then
// relies on the conditional claim alone.
func NewSLAService(store BreachStore, enricher *EnrichmentService, notifier BreachNotifier, policy *models.EnrichmentPolicy, locker *redislock.Client, scanLimit int, logger zerolog.Logger) *SLAService {
	if policy == nil {
		policy = models.DefaultEnrichmentPolicy()
	}
	if scanLimit <= 0 {
		scanLimit = 500
	}
	return &SLAService{
		store:     store,
		enricher:  enricher,
		notifier:  notifier,
		policy:    policy,
		locker:    locker,
		scanLimit: scanLimit,
		logger:    logger,
	}
}

// Classify returns the breach state of one enriched complaint as of now
func (s *SLAService) Classify(e models.EnrichedComplaint, now time.Time) models.BreachState {
	return classifyBreach(e.SLADeadlineAt, e.ProcessingStatus, now, s.policy.WarningWindow)
}

// ScanOnce runs one evaluation pass: load unresolved complaints, enrich them
// against a single instant, classify, and claim the breach signal for every
// complaint newly past its deadline.
func (s *SLAService) ScanOnce(ctx context.Context) (ScanResult, error) {
	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, slaLockKey, time.Minute, nil)
		if err == redislock.ErrNotObtained {
			s.logger.Debug().Msg("[sla] another instance holds the scan lock")
			return ScanResult{}, nil
		}
		if err != nil {
			// Lock service down: proceed, the conditional claim keeps the
			// signal single.
			s.logger.Warn().Err(err).Msg("[sla] lock unavailable, scanning anyway")
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	complaints, err := s.store.ListUnresolved(ctx, s.scanLimit)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to load complaints for sla scan: %w", err)
	}

	now := time.Now().UTC()
	enriched := s.enricher.EnrichAllAt(ctx, complaints, now)

	result := ScanResult{Scanned: len(enriched)}
	for _, e := range enriched {
		switch s.Classify(e, now) {
		case models.BreachWarning:
			result.Warnings++
		case models.BreachBreached:
			result.Breached++
			if s.handleBreach(ctx, e, now) {
				result.NewlyBreached++
			}
		}
	}

	s.logger.Info().
		Int("scanned", result.Scanned).
		Int("breached", result.Breached).
		Int("newly_breached", result.NewlyBreached).
		Int("warnings", result.Warnings).
		Msg("[sla] scan complete")
	return result, nil
}

// handleBreach claims the episode and queues the notification. Returns true
// only for the instance that won the claim.
func (s *SLAService) handleBreach(ctx context.Context, e models.EnrichedComplaint, now time.Time) bool {
	claimed, err := s.store.ClaimBreach(ctx, e.ComplaintID, now)
	if err != nil {
		s.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[sla] breach claim failed")
		return false
	}
	if !claimed {
		return false
	}

	metrics.BreachSignals.Inc()
	s.logger.Warn().
		Int64("complaint_id", e.ComplaintID).
		Str("complaint_number", e.ComplaintNumber).
		Str("department", e.Mapping.Department).
		Time("sla_deadline_at", e.SLADeadlineAt).
		Msg("[sla] breach detected")

	if s.notifier == nil {
		return true
	}
	message := fmt.Sprintf("SLA breached for complaint %s (%s, %s): due %s, assigned to %s",
		e.ComplaintNumber, e.Category, e.City,
		e.SLADeadlineAt.Format(time.RFC3339), e.Mapping.Department)
	if err := s.notifier.QueueForComplaint(ctx, models.KindSLABreach, e, message); err != nil {
		// The claim already happened; the episode stays signalled even if
		// queueing fails.
		s.logger.Warn().Err(err).Int64("complaint_id", e.ComplaintID).Msg("[sla] breach notification not queued")
	}
	return true
}

// classifyBreach is the single classification rule every read path shares.
// Resolved complaints are never breached regardless of deadline.
func classifyBreach(deadline time.Time, status models.ProcessingStatus, now time.Time, window time.Duration) models.BreachState {
	if status == models.ProcessingResolved {
		return models.BreachOK
	}
	if now.After(deadline) {
		return models.BreachBreached
	}
	if window > 0 && now.Add(window).After(deadline) {
		return models.BreachWarning
	}
	return models.BreachOK
}
