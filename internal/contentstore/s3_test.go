package contentstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/rewards"
)

var testPolicy = rewards.CallPolicy{Timeout: 2 * time.Second, Attempts: 2, Backoff: time.Millisecond}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string]string
	puts    int
	status  int
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.status != 0 {
		w.WriteHeader(b.status)
		return
	}
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)
	b.objects[r.URL.Path] = string(body)
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestStore(t *testing.T, bucket *fakeBucket, publicBase string) *S3Store {
	t.Helper()
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)
	st, err := NewS3(context.Background(), config.ContentConfig{
		Bucket:          "meta",
		Endpoint:        srv.URL,
		Region:          "auto",
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
		PublicBaseURL:   publicBase,
		KeyPrefix:       "/metadata/",
	})
	if err != nil {
		t.Fatalf("new s3 store: %v", err)
	}
	return st
}

func TestCanonicalIsStable(t *testing.T) {
	a := Metadata{Name: "Blue Comet", Tier: rewards.TierCategory, Attributes: map[string]any{"z": 1, "a": "x"}}
	b := Metadata{Name: "Blue Comet", Tier: rewards.TierCategory, Attributes: map[string]any{"a": "x", "z": 1}}
	da, _ := a.Canonical()
	db, _ := b.Canonical()
	if string(da) != string(db) || Digest(da) != Digest(db) {
		t.Fatalf("canonical form differs: %s vs %s", da, db)
	}
	if !strings.Contains(string(da), `"attributes":{"a":"x","z":1}`) {
		t.Fatalf("attributes not sorted: %s", da)
	}
}

func TestPinIsContentAddressed(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{}}
	st := newTestStore(t, bucket, "https://cdn.example.com/")
	m := Metadata{Name: "Blue Comet", Slug: "science-category-blue-comet", Category: "science", Tier: rewards.TierCategory}

	first, err := st.Pin(context.Background(), testPolicy, m)
	if err != nil {
		t.Fatalf("pin: %v", err)
	}
	second, err := st.Pin(context.Background(), testPolicy, m)
	if err != nil {
		t.Fatalf("pin again: %v", err)
	}
	doc, _ := m.Canonical()
	want := "https://cdn.example.com/metadata/" + Digest(doc) + ".json"
	if first != want || second != want {
		t.Fatalf("unexpected addresses %q %q, want %q", first, second, want)
	}
	stored, ok := bucket.objects["/meta/metadata/"+Digest(doc)+".json"]
	if !ok || stored != string(doc) {
		t.Fatalf("object not stored at content key: %v", bucket.objects)
	}

	m.Name = "Red Dwarf"
	other, err := st.Pin(context.Background(), testPolicy, m)
	if err != nil {
		t.Fatalf("pin other: %v", err)
	}
	if other == first {
		t.Fatal("different metadata must pin to a different address")
	}
}

func TestPinClientErrorIsPermanent(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{}, status: http.StatusForbidden}
	st := newTestStore(t, bucket, "")
	_, err := st.Pin(context.Background(), testPolicy, Metadata{Name: "x"})
	if !errors.Is(err, rewards.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	if bucket.puts != 1 {
		t.Fatalf("403 must not be retried, got %d requests", bucket.puts)
	}
}

func TestPinServerErrorRetries(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{}, status: http.StatusServiceUnavailable}
	st := newTestStore(t, bucket, "")
	_, err := st.Pin(context.Background(), testPolicy, Metadata{Name: "x"})
	if !errors.Is(err, rewards.ErrExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
	if bucket.puts != testPolicy.Attempts {
		t.Fatalf("expected %d attempts, got %d", testPolicy.Attempts, bucket.puts)
	}
}
