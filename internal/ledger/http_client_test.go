package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"
)

var testPolicy = rewards.CallPolicy{Timeout: time.Second, Attempts: 3, Backoff: time.Millisecond}

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(config.LedgerConfig{BaseURL: srv.URL + "/", APIToken: "secret", PolicyID: "policy1"})
}

func TestSubmitSendsIdempotentRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/mints" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "op1" {
			t.Errorf("unexpected idempotency key %q", got)
		}
		var req SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.PolicyID != "policy1" || req.MetadataAddress != "ipfs://m" {
			t.Errorf("unexpected body %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_ref": "tx_abc"})
	})

	ref, err := client.Submit(context.Background(), testPolicy, SubmitRequest{
		IdempotencyKey:  "op1",
		AssetName:       "science-category-blue-comet",
		MetadataAddress: "ipfs://m",
		OwnerAddress:    "addr1",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if ref != "tx_abc" {
		t.Fatalf("unexpected tx ref %q", ref)
	}
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_ref": "tx_ok"})
	})
	ref, err := client.Submit(context.Background(), testPolicy, SubmitRequest{IdempotencyKey: "op1"})
	if err != nil || ref != "tx_ok" {
		t.Fatalf("expected success on third attempt, got %q err=%v", ref, err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestSubmitClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad owner address", http.StatusUnprocessableEntity)
	})
	_, err := client.Submit(context.Background(), testPolicy, SubmitRequest{IdempotencyKey: "op1"})
	if !errors.Is(err, rewards.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls.Load())
	}
}

func TestSubmitTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})
	policy := rewards.CallPolicy{Timeout: 20 * time.Millisecond, Attempts: 2, Backoff: time.Millisecond}
	_, err := client.Submit(context.Background(), policy, SubmitRequest{IdempotencyKey: "op1"})
	if !errors.Is(err, rewards.ErrExternalTimeout) {
		t.Fatalf("expected external timeout, got %v", err)
	}
}

func TestConfirmStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   Status
		detail string
	}{
		{"finalized", http.StatusOK, `{"status":"finalized"}`, StatusFinalized, ""},
		{"pending", http.StatusOK, `{"status":"pending"}`, StatusPending, ""},
		{"failed", http.StatusOK, `{"status":"failed","detail":"utxo spent"}`, StatusFailed, "utxo spent"},
		{"not yet visible", http.StatusNotFound, `{}`, StatusPending, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/transactions/tx_1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			conf, err := client.Confirm(context.Background(), testPolicy, "tx_1")
			if err != nil {
				t.Fatalf("confirm: %v", err)
			}
			if conf.Status != tc.want || conf.Detail != tc.detail {
				t.Fatalf("unexpected confirmation %+v", conf)
			}
		})
	}
}

func TestConfirmUnknownStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"rolled_back"}`))
	})
	if _, err := client.Confirm(context.Background(), testPolicy, "tx_1"); !errors.Is(err, rewards.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
}
