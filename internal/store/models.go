package store

import (
	"time"

	"trivia-rewards/internal/rewards"
)

type Season struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	GraceDays int       `json:"grace_days"`
	CreatedAt time.Time `json:"created_at"`
}

type Eligibility struct {
	ID         string                    `json:"id"`
	Kind       rewards.EligibilityKind   `json:"kind"`
	CategoryID string                    `json:"category_id"`
	SeasonID   string                    `json:"season_id,omitempty"`
	PlayerID   string                    `json:"player_id"`
	SessionID  string                    `json:"session_id"`
	Status     rewards.EligibilityStatus `json:"status"`
	CreatedAt  time.Time                 `json:"created_at"`
	ExpiresAt  time.Time                 `json:"expires_at"`
	UsedAt     *time.Time                `json:"used_at,omitempty"`
	ExpiredAt  *time.Time                `json:"expired_at,omitempty"`
}

type CatalogItem struct {
	ID             string         `json:"id"`
	CategoryID     string         `json:"category_id"`
	Tier           rewards.Tier   `json:"tier"`
	Name           string         `json:"name"`
	Slug           string         `json:"slug"`
	Attributes     map[string]any `json:"attributes"`
	ArtworkAddress string         `json:"artwork_address"`
	IsAllocated    bool           `json:"is_allocated"`
	AllocatedAt    *time.Time     `json:"allocated_at,omitempty"`
	PinAddress     string         `json:"pin_address,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Operation struct {
	ID            string                  `json:"id"`
	Kind          rewards.OperationKind   `json:"kind"`
	ForgeType     rewards.ForgeType       `json:"forge_type,omitempty"`
	PlayerID      string                  `json:"player_id"`
	OwnerAddress  string                  `json:"owner_address"`
	EligibilityID string                  `json:"eligibility_id,omitempty"`
	CatalogItemID string                  `json:"catalog_item_id"`
	SeasonID      string                  `json:"season_id,omitempty"`
	Status        rewards.OperationStatus `json:"status"`
	Stage         rewards.Stage           `json:"stage"`
	TxRef         string                  `json:"tx_ref,omitempty"`
	ErrorCode     string                  `json:"error_code,omitempty"`
	ErrorDetail   string                  `json:"error_detail,omitempty"`
	RetryOf       string                  `json:"retry_of,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	ConfirmedAt   *time.Time              `json:"confirmed_at,omitempty"`
	InputIDs      []string                `json:"input_ids,omitempty"`
}

type Ownership struct {
	ID                  string                  `json:"id"`
	PlayerID            string                  `json:"player_id"`
	Source              rewards.OwnershipSource `json:"source"`
	OperationID         string                  `json:"operation_id"`
	CatalogItemID       string                  `json:"catalog_item_id"`
	CategoryID          string                  `json:"category_id"`
	Tier                rewards.Tier            `json:"tier"`
	SeasonID            string                  `json:"season_id,omitempty"`
	Metadata            map[string]any          `json:"metadata"`
	TxRef               string                  `json:"tx_ref"`
	ConfirmedAt         time.Time               `json:"confirmed_at"`
	BurnedAt            *time.Time              `json:"burned_at,omitempty"`
	BurnedByOperationID string                  `json:"burned_by_operation_id,omitempty"`
}

type PeriodScore struct {
	PlayerID        string        `json:"player_id"`
	PeriodID        string        `json:"period_id"`
	Scope           rewards.Scope `json:"scope"`
	Points          int64         `json:"points"`
	PerfectCount    int           `json:"perfect_count"`
	AvgResponseMS   float64       `json:"avg_response_ms"`
	SessionsUsed    int           `json:"sessions_used"`
	ItemsClaimed    int           `json:"items_claimed"`
	FirstAchievedAt time.Time     `json:"first_achieved_at"`
	Version         int64         `json:"version"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
