package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/casperlink/intent-engine/pkg/deploy"
	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/casperlink/intent-engine/pkg/pricefeed"
	"github.com/casperlink/intent-engine/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watchingIntent(id string) models.Intent {
	return models.Intent{
		ID:                id,
		ClientID:          "intent_" + id,
		FromToken:         "USDC",
		ToToken:           "CSPR",
		FromChain:         "casper",
		ToChain:           "casper",
		Amount:            "100 USDC",
		IntentType:        models.IntentTypeLimitOrder,
		Status:            models.StatusWatching,
		HasPriceCondition: true,
		PriceCondition:    models.ConditionLTE,
		TargetPrice:       0.04,
		PriceToken:        "CSPR",
		IsLocalIntent:     true,
	}
}

func scheduledDCAIntent(id string, next time.Time) models.Intent {
	return models.Intent{
		ID:                id,
		FromToken:         "CSPR",
		ToToken:           "USDC",
		FromChain:         "casper",
		ToChain:           "casper",
		Amount:            "25 CSPR",
		IntentType:        models.IntentTypeDCA,
		Status:            models.StatusScheduled,
		IsDCA:             true,
		DCAInterval:       models.DCAIntervalHourly,
		DCACount:          4,
		NextExecutionTime: next.UnixMilli(),
		IsLocalIntent:     true,
	}
}

func TestPollTick(t *testing.T) {
	t.Run("condition met promotes and executes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))
		env.feed.setPrices(map[string]float64{"CSPR": 0.039})

		env.service.pollTick(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusExecuting, got.Status)
		assert.Equal(t, "deploy-1", got.TxHash)
		assert.Equal(t, []deploy.Kind{deploy.KindVenueSwap}, env.builder.builtKinds())
	})

	t.Run("condition not met leaves intent watching", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))
		env.feed.setPrices(map[string]float64{"CSPR": 0.05})

		saves := env.store.SaveCount()
		env.service.pollTick(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusWatching, got.Status)
		assert.Equal(t, 0, env.wallet.sendCalls())
		assert.Equal(t, saves, env.store.SaveCount(), "unchanged tick must not rewrite the store")
	})

	t.Run("feed failure holds watching intents", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))
		env.feed.setError(pricefeed.ErrFeedUnavailable)

		env.service.pollTick(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusWatching, got.Status)
		assert.Equal(t, 0, env.wallet.sendCalls())
	})

	t.Run("no feed request without watching intents", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, scheduledDCAIntent("1", time.Now().Add(time.Hour)))

		env.service.pollTick(context.Background())

		assert.Equal(t, 0, env.feed.calls)
	})

	t.Run("all watchers evaluated against one snapshot", func(t *testing.T) {
		env := newTestEnv(t, nil)
		first := watchingIntent("1")
		second := watchingIntent("2")
		second.TargetPrice = 0.02
		env.seedIntent(t, first)
		env.seedIntent(t, second)
		env.feed.setPrices(map[string]float64{"CSPR": 0.039})

		env.service.pollTick(context.Background())

		assert.Equal(t, 1, env.feed.calls)
		assert.Equal(t, models.StatusExecuting, env.intentByID(t, "1").Status)
		assert.Equal(t, models.StatusWatching, env.intentByID(t, "2").Status)
	})

	t.Run("auto execute disabled stops at ready", func(t *testing.T) {
		cfg := testConfig()
		cfg.AutoExecute = false
		env := newTestEnv(t, cfg)
		env.seedIntent(t, watchingIntent("1"))
		env.feed.setPrices(map[string]float64{"CSPR": 0.039})

		env.service.pollTick(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusReady, got.Status)
		assert.Equal(t, 0, env.wallet.sendCalls())
	})
}

func TestExecute(t *testing.T) {
	t.Run("only one attempt per intent at a time", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))
		env.service.mu.Lock()
		env.service.intents[0].Status = models.StatusReady
		env.service.mu.Unlock()

		release := make(chan struct{})
		env.wallet.block = release

		var wg sync.WaitGroup
		wg.Add(1)
		firstErr := make(chan error, 1)
		go func() {
			defer wg.Done()
			_, err := env.service.Execute(context.Background(), "1")
			firstErr <- err
		}()

		// Wait for the first attempt to reach the wallet.
		require.Eventually(t, func() bool {
			return env.wallet.sendCalls() == 1
		}, time.Second, time.Millisecond)

		_, err := env.service.Execute(context.Background(), "1")
		assert.ErrorIs(t, err, ErrExecutionInFlight)

		close(release)
		wg.Wait()
		require.NoError(t, <-firstErr)

		assert.Equal(t, 1, env.wallet.sendCalls())
		assert.Equal(t, models.StatusExecuting, env.intentByID(t, "1").Status)
	})

	t.Run("failure keeps pre-execution status", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)
		env.wallet.err = errors.New("node unreachable")

		_, err := env.service.Execute(context.Background(), "1")
		require.Error(t, err)

		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, "1", execErr.IntentID)
		assert.Equal(t, models.StatusReady, env.intentByID(t, "1").Status)
	})

	t.Run("cancellation keeps pre-execution status", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)
		env.wallet.err = ErrWalletCancelled

		_, err := env.service.Execute(context.Background(), "1")
		require.ErrorIs(t, err, ErrWalletCancelled)
		assert.Equal(t, models.StatusReady, env.intentByID(t, "1").Status)
	})

	t.Run("rejects non executable statuses", func(t *testing.T) {
		for _, status := range []models.Status{models.StatusWatching, models.StatusExecuting, models.StatusCompleted} {
			env := newTestEnv(t, nil)
			in := watchingIntent("1")
			in.Status = status
			env.seedIntent(t, in)

			_, err := env.service.Execute(context.Background(), "1")
			assert.ErrorIs(t, err, ErrNotExecutable, "status %s", status)
		}
	})

	t.Run("unknown intent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		_, err := env.service.Execute(context.Background(), "42")
		assert.ErrorIs(t, err, ErrIntentNotFound)
	})

	t.Run("no connected account", func(t *testing.T) {
		cfg := testConfig()
		cfg.Account = ""
		env := newTestEnv(t, cfg)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)

		_, err := env.service.Execute(context.Background(), "1")
		assert.ErrorIs(t, err, ErrNoAccount)
		assert.Equal(t, 0, env.wallet.sendCalls())
	})

	t.Run("registered cross venue intent uses the registry", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		in.IsLocalIntent = false
		in.ToChain = "ethereum"
		env.seedIntent(t, in)

		_, err := env.service.Execute(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, []deploy.Kind{deploy.KindExecuteWithTransfer}, env.builder.builtKinds())
	})

	t.Run("venue swap carries a slippage estimate from the snapshot", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusWatching
		env.seedIntent(t, in)
		env.feed.setPrices(map[string]float64{"CSPR": 0.039, "USDC": 1.0})

		env.service.pollTick(context.Background())

		require.Equal(t, []deploy.Kind{deploy.KindVenueSwap}, env.builder.builtKinds())
		p := env.builder.lastParams()
		// 100 USDC at 1.00 into CSPR at 0.039.
		assert.Equal(t, deploy.EstimateOut(100, 1.0, 0.039), p.ExpectedOut)
		assert.Greater(t, p.ExpectedOut, uint64(0))
	})

	t.Run("estimate falls back to the feed before any poll", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)
		env.feed.setPrices(map[string]float64{"CSPR": 0.05, "USDC": 1.0})

		_, err := env.service.Execute(context.Background(), "1")
		require.NoError(t, err)

		assert.Equal(t, 1, env.feed.calls)
		assert.Greater(t, env.builder.lastParams().ExpectedOut, uint64(0))
	})

	t.Run("missing quote disables the floor", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)
		env.feed.setPrices(map[string]float64{"CSPR": 0.05})

		_, err := env.service.Execute(context.Background(), "1")
		require.NoError(t, err)

		assert.Equal(t, uint64(0), env.builder.lastParams().ExpectedOut)
	})

	t.Run("open venue circuit blocks execution", func(t *testing.T) {
		cfg := testConfig()
		cfg.CircuitBreaker.Threshold = 2
		env := newTestEnv(t, cfg)
		in := watchingIntent("1")
		in.Status = models.StatusReady
		env.seedIntent(t, in)
		env.wallet.err = errors.New("node unreachable")

		for i := 0; i < 2; i++ {
			_, err := env.service.Execute(context.Background(), "1")
			require.Error(t, err)
		}

		_, err := env.service.Execute(context.Background(), "1")
		assert.ErrorIs(t, err, ErrVenueUnavailable)
		assert.Equal(t, 2, env.wallet.sendCalls())

		assert.True(t, env.service.VenueStates()["casper"])
		assert.True(t, env.service.ResetVenue("casper"))
		assert.False(t, env.service.VenueStates()["casper"])
	})
}

func TestDCALifecycle(t *testing.T) {
	t.Run("due intent executes and reschedules", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, scheduledDCAIntent("1", time.Now().Add(-time.Second)))

		env.service.dcaTickOnce(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusScheduled, got.Status)
		assert.Equal(t, 1, got.DCAExecuted)
		assert.Len(t, got.DCAExecutions, 1)
		assert.Greater(t, got.NextExecutionTime, time.Now().UnixMilli())
	})

	t.Run("not yet due intent is left alone", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, scheduledDCAIntent("1", time.Now().Add(time.Hour)))

		env.service.dcaTickOnce(context.Background())

		assert.Equal(t, 0, env.wallet.sendCalls())
	})

	t.Run("at most one execution per tick", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, scheduledDCAIntent("1", time.Now().Add(-time.Second)))
		env.seedIntent(t, scheduledDCAIntent("2", time.Now().Add(-time.Second)))

		env.service.dcaTickOnce(context.Background())
		assert.Equal(t, 1, env.wallet.sendCalls())

		env.service.dcaTickOnce(context.Background())
		assert.Equal(t, 2, env.wallet.sendCalls())
	})

	t.Run("final execution completes the strategy", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := scheduledDCAIntent("1", time.Now().Add(-time.Second))
		in.DCACount = 1
		env.seedIntent(t, in)

		env.service.dcaTickOnce(context.Background())

		got := env.intentByID(t, "1")
		assert.Equal(t, models.StatusCompleted, got.Status)
		assert.Equal(t, int64(0), got.NextExecutionTime)

		// A completed intent never runs again.
		env.service.dcaTickOnce(context.Background())
		assert.Equal(t, 1, env.wallet.sendCalls())
	})

	t.Run("signed out account pauses scheduled executions", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, scheduledDCAIntent("1", time.Now().Add(-time.Second)))
		env.service.HandleWalletEvent(EventSignedOut, "")

		env.service.dcaTickOnce(context.Background())
		assert.Equal(t, 0, env.wallet.sendCalls())

		env.service.HandleWalletEvent(EventSignedIn, "account-hash-test")
		env.service.dcaTickOnce(context.Background())
		assert.Equal(t, 1, env.wallet.sendCalls())
	})
}

func TestConfirmCompletion(t *testing.T) {
	t.Run("executing intent completes", func(t *testing.T) {
		env := newTestEnv(t, nil)
		in := watchingIntent("1")
		in.Status = models.StatusExecuting
		env.seedIntent(t, in)

		require.NoError(t, env.service.ConfirmCompletion("1"))
		assert.Equal(t, models.StatusCompleted, env.intentByID(t, "1").Status)
	})

	t.Run("non executing intent is rejected", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))

		err := env.service.ConfirmCompletion("1")
		assert.ErrorIs(t, err, ErrNotExecutable)
	})

	t.Run("unknown intent", func(t *testing.T) {
		env := newTestEnv(t, nil)
		assert.ErrorIs(t, env.service.ConfirmCompletion("42"), ErrIntentNotFound)
	})
}

func TestServiceLifecycle(t *testing.T) {
	t.Run("restart resumes from the stored collection", func(t *testing.T) {
		st := store.NewMemoryStore()
		require.NoError(t, st.SaveAll([]models.Intent{watchingIntent("1")}))

		env := &testEnv{store: st, feed: &stubFeed{}, wallet: &stubWallet{}, builder: &stubBuilder{}}
		env.feed.setPrices(map[string]float64{"CSPR": 0.039})
		svc, err := NewService(testConfig(), st, env.feed, env.wallet, env.builder, &logger.EmptyLogger{})
		require.NoError(t, err)
		env.service = svc

		counts := svc.StatusCounts()
		assert.Equal(t, 1, counts[models.StatusWatching])

		svc.pollTick(context.Background())
		assert.Equal(t, models.StatusExecuting, env.intentByID(t, "1").Status)
	})

	t.Run("start loops until cancelled", func(t *testing.T) {
		env := newTestEnv(t, nil)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- env.service.Start(ctx)
		}()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("Start did not return after cancellation")
		}
	})

	t.Run("status report", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.seedIntent(t, watchingIntent("1"))
		env.seedIntent(t, scheduledDCAIntent("2", time.Now().Add(time.Hour)))

		counts := env.service.StatusCounts()
		assert.Equal(t, 1, counts[models.StatusWatching])
		assert.Equal(t, 1, counts[models.StatusScheduled])
		assert.Equal(t, 0, env.service.InFlight())

		countdowns := env.service.Countdowns()
		require.Len(t, countdowns, 1)
		assert.Contains(t, countdowns, "2")
		assert.InDelta(t, 3600, countdowns["2"], 2, "about an hour remaining")
		assert.NotContains(t, countdowns, "1", "watching intents have no countdown")

		fetchedAt, _ := env.service.FeedStatus()
		assert.True(t, fetchedAt.IsZero(), "no snapshot before the first poll")

		env.service.pollTick(context.Background())
		fetchedAt, quotes := env.service.FeedStatus()
		assert.False(t, fetchedAt.IsZero())
		assert.Greater(t, quotes, 0)
	})
}
