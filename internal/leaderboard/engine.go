package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trivia-rewards/internal/cache"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/store"

	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
	rebuildBatch    = 500
	rebuildLockTTL  = 2 * time.Minute
)

// Engine keeps period scores in Postgres and projects them into per-scope Redis rankings.
// It is the only writer of the ranking keys.
type Engine struct {
	store *store.Store
	cache *cache.Cache
	now   func() time.Time
}

func NewEngine(st *store.Store, c *cache.Cache) *Engine {
	return &Engine{store: st, cache: c, now: time.Now}
}

func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ScoreEvent is one scoring result from a game session. Every event applied through
// ApplyScoreDelta counts as one session in the weighted response-time average.
type ScoreEvent struct {
	PlayerID     string  `json:"player_id"`
	PeriodID     string  `json:"period_id"`
	CategoryID   string  `json:"category_id,omitempty"`
	Points       int64   `json:"points"`
	Perfects     int     `json:"perfects"`
	ResponseMS   float64 `json:"response_ms"`
	ItemsClaimed int     `json:"items_claimed"`
}

func (ev ScoreEvent) scopes() []rewards.Scope {
	scopes := []rewards.Scope{rewards.GlobalScope}
	if ev.CategoryID != "" {
		scopes = append(scopes, rewards.CategoryScope(ev.CategoryID))
	}
	return scopes
}

// Entry is one ranked row as served to callers and stored as the cached payload.
type Entry struct {
	Rank            int64     `json:"rank,omitempty"`
	PlayerID        string    `json:"player_id"`
	Points          int64     `json:"points"`
	ItemsClaimed    int       `json:"items_claimed"`
	PerfectCount    int       `json:"perfect_count"`
	AvgResponseMS   float64   `json:"avg_response_ms"`
	SessionsUsed    int       `json:"sessions_used"`
	FirstAchievedAt time.Time `json:"first_achieved_at"`
}

func entryFor(ps *store.PeriodScore) Entry {
	return Entry{
		PlayerID:        ps.PlayerID,
		Points:          ps.Points,
		ItemsClaimed:    ps.ItemsClaimed,
		PerfectCount:    ps.PerfectCount,
		AvgResponseMS:   ps.AvgResponseMS,
		SessionsUsed:    ps.SessionsUsed,
		FirstAchievedAt: ps.FirstAchievedAt,
	}
}

func rankEntry(ps *store.PeriodScore) (cache.RankEntry, error) {
	payload, err := json.Marshal(entryFor(ps))
	if err != nil {
		return cache.RankEntry{}, err
	}
	return cache.RankEntry{PlayerID: ps.PlayerID, Member: memberFor(ps), Payload: payload, Version: ps.Version}, nil
}

// ApplyScoreDelta adds ev to the player's global row and, when the event names a category, to
// its category row. Both rows commit in one Postgres transaction before either is projected; a
// failed cache projection is logged and left for Rebuild. It returns the updated global row.
func (e *Engine) ApplyScoreDelta(ctx context.Context, ev ScoreEvent) (*store.PeriodScore, error) {
	return e.apply(ctx, ev, 1)
}

func (e *Engine) apply(ctx context.Context, ev ScoreEvent, sessions int) (*store.PeriodScore, error) {
	ev.PlayerID = strings.TrimSpace(ev.PlayerID)
	if ev.PlayerID == "" || !periodScopeValid(ev.PeriodID, string(rewards.GlobalScope)) {
		return nil, rewards.ErrInvalidRequest
	}
	if ev.Points < 0 || ev.Perfects < 0 || ev.ResponseMS < 0 || ev.ItemsClaimed < 0 {
		return nil, fmt.Errorf("%w: score deltas must not be negative", rewards.ErrInvalidRequest)
	}
	at := e.now()

	scopes := ev.scopes()
	deltas := make([]store.ScoreDelta, 0, len(scopes))
	for _, scope := range scopes {
		deltas = append(deltas, store.ScoreDelta{
			PlayerID:     ev.PlayerID,
			PeriodID:     ev.PeriodID,
			Scope:        scope,
			Points:       ev.Points,
			Perfects:     ev.Perfects,
			ResponseMS:   ev.ResponseMS,
			Sessions:     sessions,
			ItemsClaimed: ev.ItemsClaimed,
			At:           at,
		})
	}
	rows, err := e.store.UpsertPeriodScores(ctx, deltas)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		e.project(ctx, row)
	}
	// scopes() always puts the global scope first.
	return rows[0], nil
}

func (e *Engine) project(ctx context.Context, row *store.PeriodScore) {
	if e.cache == nil {
		return
	}
	entry, err := rankEntry(row)
	if err == nil {
		var written bool
		written, err = e.cache.PutRankEntry(ctx, cache.RankingKeysFor(row.PeriodID, string(row.Scope)), entry)
		if err == nil && !written {
			staleWritesSkipped.Add(1)
		}
	}
	if err != nil {
		cacheWriteErrors.Add(1)
		log.Error().Err(err).
			Str("player_id", row.PlayerID).
			Str("period_id", row.PeriodID).
			Str("scope", string(row.Scope)).
			Int64("version", row.Version).
			Msg("leaderboard_cache_write_failed")
	}
}

// RecordClaim counts a confirmed mint towards the claimant's items-claimed tie-break in the
// season it was stamped with. Ownerships outside a season are not ranked.
func (e *Engine) RecordClaim(ctx context.Context, own *store.Ownership) {
	if own == nil || own.SeasonID == "" || own.Source != rewards.SourceMint {
		return
	}
	_, err := e.apply(ctx, ScoreEvent{
		PlayerID:     own.PlayerID,
		PeriodID:     own.SeasonID,
		CategoryID:   own.CategoryID,
		ItemsClaimed: 1,
	}, 0)
	if err != nil {
		log.Error().Err(err).
			Str("player_id", own.PlayerID).
			Str("ownership_id", own.ID).
			Msg("leaderboard claim count failed")
	}
}

type Page struct {
	PeriodID string        `json:"period_id"`
	Scope    rewards.Scope `json:"scope"`
	Entries  []Entry       `json:"entries"`
	Total    int64         `json:"total"`
	HasMore  bool          `json:"has_more"`
	Limit    int           `json:"limit"`
	Offset   int           `json:"offset"`
}

func clampPage(limit, offset int) (int, error) {
	if offset < 0 || limit < 0 {
		return 0, fmt.Errorf("%w: negative limit or offset", rewards.ErrInvalidRequest)
	}
	if limit == 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return limit, nil
}

// GetPage returns ranks offset+1 .. offset+limit of one scope, read from the cached ranking.
func (e *Engine) GetPage(ctx context.Context, periodID string, scope rewards.Scope, limit, offset int) (*Page, error) {
	if !periodScopeValid(periodID, string(scope)) {
		return nil, rewards.ErrInvalidRequest
	}
	limit, err := clampPage(limit, offset)
	if err != nil {
		return nil, err
	}
	keys := cache.RankingKeysFor(periodID, string(scope))
	members, total, err := e.cache.RankRange(ctx, keys, int64(offset), int64(limit))
	if err != nil {
		return nil, err
	}
	players := make([]string, 0, len(members))
	for _, m := range members {
		players = append(players, playerOf(m))
	}
	payloads, err := e.cache.Payloads(ctx, keys, players)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(players))
	for i, player := range players {
		entry, err := e.resolve(ctx, periodID, scope, player, payloads[i])
		if err != nil {
			return nil, err
		}
		entry.Rank = int64(offset + i + 1)
		entries = append(entries, entry)
	}
	return &Page{
		PeriodID: periodID,
		Scope:    scope,
		Entries:  entries,
		Total:    total,
		HasMore:  int64(offset+len(entries)) < total,
		Limit:    limit,
		Offset:   offset,
	}, nil
}

// resolve decodes a cached payload, falling back to the durable row when it is missing.
func (e *Engine) resolve(ctx context.Context, periodID string, scope rewards.Scope, playerID, payload string) (Entry, error) {
	if payload != "" {
		var entry Entry
		if err := json.Unmarshal([]byte(payload), &entry); err == nil {
			return entry, nil
		}
	}
	ps, err := e.store.GetPeriodScore(ctx, playerID, periodID, scope)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve %s in %s/%s: %w", playerID, periodID, scope, err)
	}
	return entryFor(ps), nil
}

// PlayerRank returns the player's ranked entry, or rewards.ErrNotFound when unranked.
func (e *Engine) PlayerRank(ctx context.Context, periodID string, scope rewards.Scope, playerID string) (*Entry, error) {
	if !periodScopeValid(periodID, string(scope)) || playerID == "" {
		return nil, rewards.ErrInvalidRequest
	}
	keys := cache.RankingKeysFor(periodID, string(scope))
	pos, found, err := e.cache.Rank(ctx, keys, playerID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, rewards.ErrNotFound
	}
	payloads, err := e.cache.Payloads(ctx, keys, []string{playerID})
	if err != nil {
		return nil, err
	}
	entry, err := e.resolve(ctx, periodID, scope, playerID, payloads[0])
	if err != nil {
		return nil, err
	}
	entry.Rank = pos + 1
	return &entry, nil
}

// Rebuild replaces the cached ranking of one scope with one computed from the period score
// rows. Only one rebuild per scope runs at a time; a concurrent call gets
// rewards.ErrConcurrencyConflict. It returns the number of ranked players.
func (e *Engine) Rebuild(ctx context.Context, periodID string, scope rewards.Scope) (int, error) {
	if !periodScopeValid(periodID, string(scope)) {
		return 0, rewards.ErrInvalidRequest
	}
	lock, err := e.cache.TryLock(ctx, "lock:lb-rebuild:"+periodID+":"+string(scope), rebuildLockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return 0, fmt.Errorf("%w: rebuild already running", rewards.ErrConcurrencyConflict)
	}
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("period_id", periodID).Msg("rebuild lock release failed")
		}
	}()

	started := e.now()
	var entries []cache.RankEntry
	after := ""
	for {
		rows, err := e.store.ListPeriodScores(ctx, periodID, scope, after, rebuildBatch)
		if err != nil {
			return 0, err
		}
		for i := range rows {
			re, err := rankEntry(&rows[i])
			if err != nil {
				return 0, err
			}
			entries = append(entries, re)
		}
		if len(rows) < rebuildBatch {
			break
		}
		after = rows[len(rows)-1].PlayerID
	}
	if err := e.cache.ReplaceRanking(ctx, cache.RankingKeysFor(periodID, string(scope)), entries); err != nil {
		return 0, err
	}
	rebuilds.Add(1)
	log.Info().
		Str("period_id", periodID).
		Str("scope", string(scope)).
		Int("players", len(entries)).
		Dur("took", e.now().Sub(started)).
		Msg("leaderboard_rebuilt")
	return len(entries), nil
}
