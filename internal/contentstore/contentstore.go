package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"trivia-rewards/internal/rewards"
)

// Metadata is the document pinned for a realized catalog item.
type Metadata struct {
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	Category   string         `json:"category"`
	Tier       rewards.Tier   `json:"tier"`
	Image      string         `json:"image,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Canonical encodes m deterministically: fixed field order and sorted attribute keys, so equal
// metadata always produces equal bytes.
func (m Metadata) Canonical() ([]byte, error) {
	return json.Marshal(m)
}

// Digest is the hex sha256 of the canonical document.
func Digest(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

// ContentStore pins metadata and returns a stable content address. Pinning identical metadata
// twice returns the same address.
type ContentStore interface {
	Pin(ctx context.Context, policy rewards.CallPolicy, m Metadata) (string, error)
}
