package eligibility

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/rs/zerolog/log"
)

const quotaCounterTTL = 48 * time.Hour

// Manager owns eligibility state: it is the only writer of the eligibilities table besides the
// finalization transaction that consumes a claimed eligibility.
type Manager struct {
	store *store.Store
	cache *cache.Cache
	cfg   config.EngineConfig
	now   func() time.Time
}

// NewManager builds a manager. A nil cache disables the daily grant quota.
func NewManager(st *store.Store, c *cache.Cache, cfg config.EngineConfig) *Manager {
	return &Manager{store: st, cache: c, cfg: cfg, now: time.Now}
}

// WithClock replaces the time source, for tests and replays.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

type GrantRequest struct {
	Kind       rewards.EligibilityKind `json:"kind"`
	CategoryID string                  `json:"category_id"`
	SeasonID   string                  `json:"season_id,omitempty"`
	PlayerID   string                  `json:"player_id"`
	SessionID  string                  `json:"session_id"`
	// TTL overrides the configured eligibility lifetime when positive.
	TTL time.Duration `json:"-"`
}

// Grant records a new active eligibility for a qualifying session result. Seasonal grants
// without a season id are stamped with the active season; an explicit season id must exist.
func (m *Manager) Grant(ctx context.Context, req GrantRequest) (*store.Eligibility, error) {
	req.PlayerID = strings.TrimSpace(req.PlayerID)
	req.CategoryID = strings.TrimSpace(req.CategoryID)
	if !req.Kind.Valid() || req.PlayerID == "" || req.CategoryID == "" {
		return nil, rewards.ErrInvalidRequest
	}
	now := m.now()
	if req.Kind == rewards.EligibilitySeason && req.SeasonID == "" {
		season, err := m.store.ActiveSeason(ctx, now)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no active season", rewards.ErrInvalidRequest)
		}
		if err != nil {
			return nil, err
		}
		req.SeasonID = season.ID
	} else if req.SeasonID != "" {
		if _, err := m.store.GetSeason(ctx, req.SeasonID); errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown season %q", rewards.ErrInvalidRequest, req.SeasonID)
		} else if err != nil {
			return nil, err
		}
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.cfg.EligibilityTTL
	}

	quotaKey, err := m.takeQuota(ctx, req.PlayerID, now)
	if err != nil {
		return nil, err
	}
	e, err := m.store.CreateEligibility(ctx, store.Eligibility{
		Kind:       req.Kind,
		CategoryID: req.CategoryID,
		SeasonID:   req.SeasonID,
		PlayerID:   req.PlayerID,
		SessionID:  req.SessionID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	})
	if err != nil {
		m.returnQuota(ctx, quotaKey)
		return nil, err
	}
	log.Info().
		Str("eligibility_id", e.ID).
		Str("player_id", e.PlayerID).
		Str("kind", string(e.Kind)).
		Str("category_id", e.CategoryID).
		Time("expires_at", e.ExpiresAt).
		Msg("eligibility_granted")
	return e, nil
}

func (m *Manager) takeQuota(ctx context.Context, playerID string, now time.Time) (string, error) {
	if m.cache == nil || m.cfg.DailyEligibilityQuota <= 0 {
		return "", nil
	}
	key := cache.EligibilityQuotaKey(playerID, now)
	n, err := m.cache.Incr(ctx, key, quotaCounterTTL)
	if err != nil {
		// advisory only; a cache outage must not block grants
		log.Warn().Err(err).Str("player_id", playerID).Msg("eligibility quota check skipped")
		return "", nil
	}
	if n > int64(m.cfg.DailyEligibilityQuota) {
		m.returnQuota(ctx, key)
		return "", rewards.ErrQuotaExceeded
	}
	return key, nil
}

func (m *Manager) returnQuota(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := m.cache.Decr(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("eligibility quota release failed")
	}
}

// Validate returns the eligibility if it can be claimed now. An active eligibility past its
// expiry is flipped to expired on the way, unless a claim already holds it.
func (m *Manager) Validate(ctx context.Context, id string) (*store.Eligibility, error) {
	e, err := m.store.GetEligibility(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rewards.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	switch e.Status {
	case rewards.EligibilityUsed:
		return nil, rewards.ErrAlreadyUsed
	case rewards.EligibilityExpired:
		return nil, rewards.ErrExpired
	case rewards.EligibilityActive:
		now := m.now()
		if now.Before(e.ExpiresAt) {
			return e, nil
		}
		// Not flipped while a pending operation holds it: that claim entered in time and its
		// outcome decides the state. The caller still sees expired.
		flipped, err := m.store.ExpireEligibility(ctx, id, now)
		if err != nil {
			return nil, err
		}
		if flipped {
			log.Info().Str("eligibility_id", id).Str("player_id", e.PlayerID).Msg("eligibility_expired")
		}
		return nil, rewards.ErrExpired
	default:
		return nil, fmt.Errorf("eligibility %s has unknown status %q", id, e.Status)
	}
}

// Consume moves an active eligibility to used. It must only run once the operation that
// redeems it is durably pending. A lost race reports the state the winner left behind.
func (m *Manager) Consume(ctx context.Context, id string) (*store.Eligibility, error) {
	e, err := m.store.ConsumeEligibility(ctx, id, m.now())
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, err
	}
	cur, err := m.store.GetEligibility(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, rewards.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case rewards.EligibilityUsed:
		return nil, rewards.StateError(rewards.ErrAlreadyUsed)
	case rewards.EligibilityExpired:
		return nil, rewards.StateError(rewards.ErrExpired)
	default:
		return nil, rewards.ErrConcurrencyConflict
	}
}

// List returns every eligibility of the player, newest first, in all states.
func (m *Manager) List(ctx context.Context, playerID string) ([]store.Eligibility, error) {
	return m.store.ListEligibilitiesByPlayer(ctx, playerID)
}

// Claimable returns the player's eligibilities that are active and not yet past expiry.
func (m *Manager) Claimable(ctx context.Context, playerID string) ([]store.Eligibility, error) {
	all, err := m.List(ctx, playerID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := make([]store.Eligibility, 0, len(all))
	for _, e := range all {
		if e.Status == rewards.EligibilityActive && now.Before(e.ExpiresAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ExpireDue expires one batch of past-due eligibilities.
func (m *Manager) ExpireDue(ctx context.Context) (int64, error) {
	return m.store.ExpireDueEligibilities(ctx, m.now(), m.cfg.ExpirySweepBatch)
}
