package testutil

import (
	"context"
	"fmt"
	"sync"

	"trivia-rewards/internal/contentstore"
	"trivia-rewards/internal/ledger"
	"trivia-rewards/internal/rewards"
)

// FakeLedger finalizes submitted transactions after PendingPolls confirmation polls.
// Submissions are idempotent per key, like the real gateway.
type FakeLedger struct {
	mu sync.Mutex

	SubmitErr     error
	PendingPolls  int
	FailDetail    string
	NeverFinalize bool
	// BeforeSubmit runs ahead of each submit attempt; tests use it to park concurrent workflows.
	BeforeSubmit func(req ledger.SubmitRequest)

	refs        map[string]string
	polls       map[string]int
	Submissions []ledger.SubmitRequest
}

func NewFakeLedger() *FakeLedger {
	return &FakeLedger{refs: map[string]string{}, polls: map[string]int{}}
}

func (l *FakeLedger) Submit(ctx context.Context, policy rewards.CallPolicy, req ledger.SubmitRequest) (string, error) {
	var ref string
	err := policy.Do(ctx, func(ctx context.Context) error {
		if l.BeforeSubmit != nil {
			l.BeforeSubmit(req)
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		l.Submissions = append(l.Submissions, req)
		if l.SubmitErr != nil {
			return l.SubmitErr
		}
		if existing, ok := l.refs[req.IdempotencyKey]; ok {
			ref = existing
			return nil
		}
		ref = fmt.Sprintf("tx_%d_%s", len(l.refs)+1, req.IdempotencyKey)
		l.refs[req.IdempotencyKey] = ref
		return nil
	})
	return ref, err
}

func (l *FakeLedger) Confirm(ctx context.Context, policy rewards.CallPolicy, txRef string) (ledger.Confirmation, error) {
	var conf ledger.Confirmation
	err := policy.Do(ctx, func(ctx context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.polls[txRef]++
		switch {
		case l.FailDetail != "":
			conf = ledger.Confirmation{Status: ledger.StatusFailed, Detail: l.FailDetail}
		case l.NeverFinalize || l.polls[txRef] <= l.PendingPolls:
			conf = ledger.Confirmation{Status: ledger.StatusPending}
		default:
			conf = ledger.Confirmation{Status: ledger.StatusFinalized}
		}
		return nil
	})
	return conf, err
}

func (l *FakeLedger) SubmitCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Submissions)
}

func (l *FakeLedger) Polls(txRef string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.polls[txRef]
}

// FakeContentStore pins to fake://<digest>.
type FakeContentStore struct {
	mu     sync.Mutex
	PinErr error
	Pinned []contentstore.Metadata
}

func (c *FakeContentStore) Pin(ctx context.Context, policy rewards.CallPolicy, m contentstore.Metadata) (string, error) {
	var addr string
	err := policy.Do(ctx, func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.PinErr != nil {
			return c.PinErr
		}
		doc, err := m.Canonical()
		if err != nil {
			return rewards.Permanent(err)
		}
		c.Pinned = append(c.Pinned, m)
		addr = "fake://" + contentstore.Digest(doc)
		return nil
	})
	return addr, err
}

func (c *FakeContentStore) PinCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Pinned)
}
