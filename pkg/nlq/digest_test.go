package nlq

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pharmakg/backend/pkg/store"
)

type stubStorage struct {
	store.GraphStorage
	counts map[string]int64
	err    error
	calls  atomic.Int64
}

func (s *stubStorage) CountByLabel(ctx context.Context, label string) (int64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return 0, s.err
	}
	return s.counts[label], nil
}

func TestDigestContainsSchemaSections(t *testing.T) {
	provider := NewDigestProvider(nil)
	digest := provider.Digest(context.Background())

	for _, want := range []string{
		"Medicine", "Pharmacopoeia", "Volume", "Category",
		"BELONGS_TO", "REFER_TO",
		"medicines(name: $name)",
		"不支持where子句",
	} {
		if !strings.Contains(digest, want) {
			t.Fatalf("digest missing %q", want)
		}
	}
}

func TestDigestAppendsLiveStats(t *testing.T) {
	storage := &stubStorage{counts: map[string]int64{"Medicine": 6000, "Category": 12, "Volume": 4}}
	provider := NewDigestProvider(storage)

	digest := provider.Digest(context.Background())
	if !strings.Contains(digest, "Medicine 节点数量: 6000") {
		t.Fatalf("digest missing live stats: %s", digest[len(digest)-200:])
	}
}

func TestDigestDegradesWhenStatsFail(t *testing.T) {
	storage := &stubStorage{err: errors.New("connection refused")}
	provider := NewDigestProvider(storage)

	digest := provider.Digest(context.Background())
	if !strings.Contains(digest, "Medicine") {
		t.Fatal("static digest must survive stats failure")
	}
	if strings.Contains(digest, "节点数量") {
		t.Fatal("stats section present despite failure")
	}
}

func TestDigestCachesUntilCleared(t *testing.T) {
	storage := &stubStorage{counts: map[string]int64{"Medicine": 1}}
	provider := NewDigestProvider(storage)

	provider.Digest(context.Background())
	provider.Digest(context.Background())
	if got := storage.calls.Load(); got != 3 {
		t.Fatalf("storage calls = %d, want 3 (one per label, cached afterwards)", got)
	}

	provider.ClearCache()
	provider.Digest(context.Background())
	if got := storage.calls.Load(); got != 6 {
		t.Fatalf("storage calls = %d, want 6 after cache clear", got)
	}
}
