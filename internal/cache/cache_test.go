package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/idea-validator/internal/evaluator"
)

func setup(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ResultCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	c, err := New(client, ttl, evaluator.DefaultCriteria(), nil)
	require.NoError(t, err)
	return mr, c
}

var request = evaluator.Request{
	Description:  "Marketplace connecting farmers with restaurants",
	TargetMarket: "Urban restaurants",
	Industry:     "AgriTech",
}

func successful() *evaluator.Result {
	return &evaluator.Result{
		ID:         "eval-1",
		FinalScore: 55.5,
		PerCriterion: map[string]evaluator.CriterionResult{
			"feasibility": {Question: "Is it technically and financially feasible?", Explanation: "cheap to build", Score: 9},
		},
		Suggestions:     []string{"Talk to farmers"},
		SuggestionsText: "Talk to farmers",
		Improvement:     "Narrow the market",
		SuccessRate:     62,
		Attempts:        1,
	}
}

func TestResultCacheRoundTrip(t *testing.T) {
	mr, c := setup(t, time.Hour)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, request)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, request, successful()))

	cached, ok, err := c.Get(ctx, request)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, successful(), cached)
	assert.Equal(t, time.Hour, mr.TTL(c.Key(request)))
}

func TestResultCacheNormalizesRequest(t *testing.T) {
	_, c := setup(t, 0)

	loose := evaluator.Request{
		Description:  "  marketplace connecting   FARMERS with restaurants ",
		TargetMarket: "urban restaurants",
		Industry:     "agritech",
	}
	assert.Equal(t, c.Key(request), c.Key(loose))
	assert.NotEqual(t, c.Key(request), c.Key(evaluator.Request{Description: "Other idea"}))
}

func TestResultCacheKeySeparatesFields(t *testing.T) {
	_, c := setup(t, 0)

	joined := evaluator.Request{Description: "drone delivery", TargetMarket: ""}
	split := evaluator.Request{Description: "drone", TargetMarket: "delivery"}
	moved := evaluator.Request{Description: "drone delivery", Industry: ""}
	industry := evaluator.Request{Description: "drone delivery", Industry: "logistics"}

	assert.NotEqual(t, c.Key(joined), c.Key(split))
	assert.Equal(t, c.Key(joined), c.Key(moved))
	assert.NotEqual(t, c.Key(joined), c.Key(industry))
	assert.True(t, strings.HasPrefix(c.Key(joined), keyPrefix))
}

func TestResultCacheKeyDependsOnCriteria(t *testing.T) {
	mr, c := setup(t, 0)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	other, err := New(client, 0, evaluator.Criteria{{Key: "team", Weight: 1}}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, c.Key(request), other.Key(request))
}

func TestResultCacheSkipsFailures(t *testing.T) {
	mr, c := setup(t, 0)

	require.NoError(t, c.Put(context.Background(), request, &evaluator.Result{Error: "retries_exhausted: boom"}))
	assert.False(t, mr.Exists(c.Key(request)))
}

func TestResultCacheExpires(t *testing.T) {
	mr, c := setup(t, 0)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, request, successful()))
	assert.Equal(t, DefaultTTL, mr.TTL(c.Key(request)))

	mr.FastForward(DefaultTTL + time.Second)

	_, ok, err := c.Get(ctx, request)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultCacheDropsCorruptEntries(t *testing.T) {
	mr, c := setup(t, 0)
	require.NoError(t, mr.Set(c.Key(request), "{not json"))

	_, ok, err := c.Get(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(c.Key(request)))
}

func TestResultCacheReportsConnectionErrors(t *testing.T) {
	mr, c := setup(t, 0)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	_, _, err := c.Get(context.Background(), request)
	assert.Error(t, err)
	assert.Error(t, c.Put(context.Background(), request, successful()))
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Address: "localhost:6379"}.Enabled())
}
