package ledger

import (
	"context"

	"trivia-rewards/internal/rewards"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusFinalized Status = "finalized"
	StatusFailed    Status = "failed"
)

// SubmitRequest mints one asset to OwnerAddress. Resubmitting the same IdempotencyKey returns
// the original transaction reference.
type SubmitRequest struct {
	IdempotencyKey  string   `json:"idempotency_key"`
	PolicyID        string   `json:"policy_id,omitempty"`
	AssetName       string   `json:"asset_name"`
	MetadataAddress string   `json:"metadata_address"`
	OwnerAddress    string   `json:"owner_address"`
	BurnRefs        []string `json:"burn_refs,omitempty"`
}

type Confirmation struct {
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Ledger is the external chain capability. Submit must be idempotent per key and Confirm safe
// to poll repeatedly.
type Ledger interface {
	Submit(ctx context.Context, policy rewards.CallPolicy, req SubmitRequest) (string, error)
	Confirm(ctx context.Context, policy rewards.CallPolicy, txRef string) (Confirmation, error)
}
