package redis

import (
	"context"
	"testing"
	"time"

	"bridgebites-service/internal/domain"
	"bridgebites-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestCatalogCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	store := memory.NewStore()
	store.SeedChallenges(sampleChallenge("c1"), sampleChallenge("c2"))
	loader := &countingLoader{inner: store}

	cache := NewCatalogCache(client, loader, time.Minute)

	catalog, err := cache.ListChallenges(context.Background())
	if err != nil {
		t.Fatalf("list challenges: %v", err)
	}
	if len(catalog) != 2 {
		t.Fatalf("expected 2 challenges, got %d", len(catalog))
	}
	if loader.listCalls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.listCalls)
	}

	// Second call should hit cache, loader not incremented.
	if _, err := cache.ListChallenges(context.Background()); err != nil {
		t.Fatalf("cached list: %v", err)
	}
	if loader.listCalls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.listCalls)
	}
	if !mr.Exists("challenges:catalog") {
		t.Fatalf("expected catalog key in redis")
	}
}

func TestCatalogCacheGetServesFromCachedCatalog(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := memory.NewStore()
	store.SeedChallenges(sampleChallenge("c1"))
	loader := &countingLoader{inner: store}
	cache := NewCatalogCache(newClient(mr), loader, time.Minute)

	if _, err := cache.ListChallenges(context.Background()); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	challenge, err := cache.GetChallenge(context.Background(), "c1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if challenge.ID != "c1" {
		t.Fatalf("expected c1, got %s", challenge.ID)
	}
	if loader.getCalls != 0 {
		t.Fatalf("cached catalog should serve gets, loader gets=%d", loader.getCalls)
	}

	// A miss inside the cached catalog falls through to the loader.
	if _, err := cache.GetChallenge(context.Background(), "missing"); err == nil {
		t.Fatalf("expected miss error")
	}
	if loader.getCalls != 1 {
		t.Fatalf("expected loader fallback, gets=%d", loader.getCalls)
	}
}

type countingLoader struct {
	inner     *memory.Store
	listCalls int
	getCalls  int
}

func (l *countingLoader) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	l.listCalls++
	return l.inner.ListChallenges(ctx)
}

func (l *countingLoader) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	l.getCalls++
	return l.inner.GetChallenge(ctx, id)
}

func sampleChallenge(id string) domain.Challenge {
	return domain.Challenge{
		ID:            id,
		Title:         "Capital Quiz",
		Type:          domain.ChallengeQuiz,
		Country:       "France",
		Points:        50,
		Options:       &domain.ChoiceSet{Choices: []string{"Paris", "Lyon"}},
		CorrectAnswer: "Paris",
		IsDaily:       true,
		CreatedAt:     time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
