package stop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/storage"
	"main/pkg/exception"
)

// CancelFunc mass-cancels open orders covered by the record's scope.
// Best effort: it reports successes and failures separately.
type CancelFunc func(ctx context.Context, record model.EmergencyStopRecord) (cancelled, failed int, preserved decimal.Decimal)

// AlertFunc raises a notification about stop lifecycle events.
type AlertFunc func(severity enum.Severity, title, message string, scope model.StopScope)

type scopeKey struct {
	level  enum.StopLevel
	target string
}

// Service owns the emergency-stop record set. All mutation goes through its
// mutex; nothing else writes records. Dispatch gates call Check before
// every submission attempt.
type Service struct {
	mu          sync.Mutex
	records     map[string]*model.EmergencyStopRecord
	active      map[scopeKey]string
	maxDuration time.Duration
	cancelAll   CancelFunc
	alert       AlertFunc
	store       storage.StopStore
	now         func() time.Time
}

func NewService(maxDuration time.Duration, cancelAll CancelFunc, alert AlertFunc, store storage.StopStore) *Service {
	if maxDuration <= 0 {
		maxDuration = time.Hour
	}
	return &Service{
		records:     make(map[string]*model.EmergencyStopRecord),
		active:      make(map[scopeKey]string),
		maxDuration: maxDuration,
		cancelAll:   cancelAll,
		alert:       alert,
		store:       store,
		now:         time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetCancelFunc wires the mass-cancel hook after construction; the
// execution engine and this service reference each other.
func (s *Service) SetCancelFunc(fn CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAll = fn
}

// ConfirmToken derives the token a manual activation must present.
// The caller-side UI computes the same digest, so a stray request without
// the matching token cannot trip the switch.
func ConfirmToken(level enum.StopLevel, targetID, reason string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", level, targetID, reason)))
	return hex.EncodeToString(sum[:8])
}

// ActivateManual activates a stop from a human request.
func (s *Service) ActivateManual(ctx context.Context, level enum.StopLevel, targetID, reason, token, triggeredBy string) (model.EmergencyStopRecord, error) {
	if token != ConfirmToken(level, targetID, reason) {
		return model.EmergencyStopRecord{}, exception.ErrStopBadConfirmToken
	}
	return s.activate(ctx, level, targetID, reason, triggeredBy)
}

// ActivateAuto activates a stop from an automatic trigger path such as a
// margin-ratio breach or connectivity loss.
func (s *Service) ActivateAuto(ctx context.Context, level enum.StopLevel, targetID, reason string) (model.EmergencyStopRecord, error) {
	return s.activate(ctx, level, targetID, reason, "auto")
}

func (s *Service) activate(ctx context.Context, level enum.StopLevel, targetID, reason, triggeredBy string) (model.EmergencyStopRecord, error) {
	if !level.IsAvailable() {
		return model.EmergencyStopRecord{}, exception.ErrStopInvalidLevel
	}
	if level != enum.StopLevelGlobal && targetID == "" {
		return model.EmergencyStopRecord{}, exception.ErrInvalidArgument
	}

	now := s.now()
	expires := now.Add(s.maxDuration)
	record := model.EmergencyStopRecord{
		ID:          uuid.NewString(),
		Level:       level,
		TargetID:    targetID,
		Reason:      reason,
		Status:      enum.StopStatusActive,
		TriggeredBy: triggeredBy,
		TriggeredAt: now,
		ExpiresAt:   &expires,
		Version:     1,
	}

	s.mu.Lock()
	k := scopeKey{level: level, target: targetID}
	if _, ok := s.active[k]; ok {
		s.mu.Unlock()
		return model.EmergencyStopRecord{}, exception.ErrStopDuplicateActive
	}
	s.records[record.ID] = &record
	s.active[k] = record.ID
	cancelAll := s.cancelAll
	s.mu.Unlock()

	s.persist(ctx, record)

	logs.Warnf("emergency stop ACTIVE level=%s target=%s reason=%s by=%s", level, targetID, reason, triggeredBy)

	cancelled, failed, preserved := 0, 0, decimal.Zero
	if cancelAll != nil {
		cancelled, failed, preserved = cancelAll(ctx, record)
	}

	s.mu.Lock()
	stored := s.records[record.ID]
	stored.OrdersAffected = cancelled
	stored.CancelFailed = failed
	stored.AmountPreserved = preserved
	stored.Version++
	record = *stored
	s.mu.Unlock()

	s.persist(ctx, record)

	if s.alert != nil {
		scope := scopeFor(level, targetID)
		s.alert(enum.SeverityHigh, "emergency stop activated",
			fmt.Sprintf("level=%s target=%s reason=%s orders cancelled=%d", level, targetID, reason, cancelled), scope)
		if failed > 0 {
			s.alert(enum.SeverityCritical, "emergency stop cancel failures",
				fmt.Sprintf("level=%s target=%s: %d orders failed to cancel, manual intervention required", level, targetID, failed), scope)
		}
	}
	return record, nil
}

// Check returns the active record covering the scope, preferring the
// highest level when several match. A masked lower-scope record stays
// recorded but the higher one wins.
func (s *Service) Check(scope model.StopScope) (model.EmergencyStopRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *model.EmergencyStopRecord
	for _, id := range s.active {
		rec := s.records[id]
		if !rec.Covers(scope) {
			continue
		}
		if best == nil || rec.Level.Masks(best.Level) {
			best = rec
		}
	}
	if best == nil {
		return model.EmergencyStopRecord{}, false
	}
	return *best, true
}

// Cancel resumes trading under the record's scope.
func (s *Service) Cancel(ctx context.Context, id, by string) (model.EmergencyStopRecord, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return model.EmergencyStopRecord{}, exception.ErrStopUnknownRecord
	}
	if rec.Status != enum.StopStatusActive {
		s.mu.Unlock()
		return model.EmergencyStopRecord{}, exception.ErrStopNotActive
	}
	now := s.now()
	rec.Status = enum.StopStatusCancelled
	rec.ResolvedAt = &now
	rec.Version++
	delete(s.active, scopeKey{level: rec.Level, target: rec.TargetID})
	out := *rec
	s.mu.Unlock()

	s.persist(ctx, out)
	logs.Infof("emergency stop CANCELLED id=%s level=%s target=%s by=%s", id, out.Level, out.TargetID, by)
	if s.alert != nil {
		s.alert(enum.SeverityMedium, "emergency stop cancelled",
			fmt.Sprintf("level=%s target=%s resumed by %s", out.Level, out.TargetID, by), scopeFor(out.Level, out.TargetID))
	}
	return out, nil
}

// Records returns copies of all records, newest first not guaranteed.
func (s *Service) Records() []model.EmergencyStopRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EmergencyStopRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec)
	}
	return out
}

// Run expires stale records periodically until the context ends.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireStale()
		}
	}
}

// ExpireStale transitions ACTIVE records past their deadline to EXPIRED.
func (s *Service) ExpireStale() int {
	now := s.now()
	var done []model.EmergencyStopRecord

	s.mu.Lock()
	for k, id := range s.active {
		rec := s.records[id]
		if rec.ExpiresAt == nil || now.Before(*rec.ExpiresAt) {
			continue
		}
		rec.Status = enum.StopStatusExpired
		resolved := now
		rec.ResolvedAt = &resolved
		rec.Version++
		delete(s.active, k)
		done = append(done, *rec)
		logs.Infof("emergency stop EXPIRED id=%s level=%s target=%s", rec.ID, rec.Level, rec.TargetID)
	}
	s.mu.Unlock()

	for _, rec := range done {
		s.persist(context.Background(), rec)
	}
	return len(done)
}

func (s *Service) persist(ctx context.Context, record model.EmergencyStopRecord) {
	if s.store == nil {
		return
	}
	var err error
	if record.Version <= 1 {
		err = s.store.SaveStop(ctx, record)
	} else {
		err = s.store.UpdateStop(ctx, record)
	}
	if err != nil {
		logs.Errorf("persist stop %s v%d: %v", record.ID, record.Version, err)
	}
}

func scopeFor(level enum.StopLevel, targetID string) model.StopScope {
	switch level {
	case enum.StopLevelUser:
		return model.StopScope{UserID: targetID}
	case enum.StopLevelAccount:
		return model.StopScope{AccountID: targetID}
	case enum.StopLevelSymbol:
		return model.StopScope{Symbol: targetID}
	case enum.StopLevelStrategy:
		return model.StopScope{StrategyID: targetID}
	default:
		return model.StopScope{}
	}
}
