package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/casperlink/intent-engine/pkg/config"
	"github.com/casperlink/intent-engine/pkg/deploy"
	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/casperlink/intent-engine/pkg/pricefeed"
	"github.com/casperlink/intent-engine/pkg/store"
	"github.com/stretchr/testify/require"
)

// stubFeed serves a fixed snapshot or error.
type stubFeed struct {
	mu    sync.Mutex
	snap  *pricefeed.Snapshot
	err   error
	calls int
}

func (f *stubFeed) Snapshot(_ context.Context) (*pricefeed.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func (f *stubFeed) setPrices(prices map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = nil
	f.snap = &pricefeed.Snapshot{Prices: prices, FetchedAt: time.Now()}
}

func (f *stubFeed) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// stubWallet records Send calls and can block to simulate a slow signer.
type stubWallet struct {
	mu      sync.Mutex
	err     error
	calls   int
	lastReq json.RawMessage
	block   chan struct{}
}

func (w *stubWallet) Send(_ context.Context, request json.RawMessage, _ string) (string, error) {
	w.mu.Lock()
	w.calls++
	n := w.calls
	w.lastReq = request
	block := w.block
	err := w.err
	w.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("deploy-%d", n), nil
}

func (w *stubWallet) sendCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

// stubBuilder records each requested payload flavor and its params.
type stubBuilder struct {
	mu     sync.Mutex
	kinds  []deploy.Kind
	params []deploy.Params
}

func (b *stubBuilder) record(k deploy.Kind, p deploy.Params) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.kinds = append(b.kinds, k)
	b.params = append(b.params, p)
	return json.RawMessage(fmt.Sprintf(`{"kind":%q}`, k)), nil
}

func (b *stubBuilder) CreateIntentDeploy(p deploy.Params) (json.RawMessage, error) {
	return b.record(deploy.KindCreateIntent, p)
}

func (b *stubBuilder) ExecuteIntentDeploy(_ string, p deploy.Params) (json.RawMessage, error) {
	return b.record(deploy.KindExecuteIntent, p)
}

func (b *stubBuilder) ExecuteWithTransferDeploy(_ string, p deploy.Params) (json.RawMessage, error) {
	return b.record(deploy.KindExecuteWithTransfer, p)
}

func (b *stubBuilder) VenueSwapDeploy(p deploy.Params) (json.RawMessage, error) {
	return b.record(deploy.KindVenueSwap, p)
}

func (b *stubBuilder) builtKinds() []deploy.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]deploy.Kind, len(b.kinds))
	copy(out, b.kinds)
	return out
}

func (b *stubBuilder) lastParams() deploy.Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.params) == 0 {
		return deploy.Params{}
	}
	return b.params[len(b.params)-1]
}

// testEnv bundles a service with its collaborators for inspection.
type testEnv struct {
	service *Service
	store   *store.MemoryStore
	feed    *stubFeed
	wallet  *stubWallet
	builder *stubBuilder
}

func testConfig() *config.Config {
	return &config.Config{
		PollingInterval: 15 * time.Second,
		DCATickInterval: time.Second,
		AutoExecute:     true,
		Account:         "account-hash-test",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:        true,
			Threshold:      3,
			WindowDuration: time.Minute,
			ResetTimeout:   2 * time.Minute,
		},
	}
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}

	env := &testEnv{
		store:   store.NewMemoryStore(),
		feed:    &stubFeed{},
		wallet:  &stubWallet{},
		builder: &stubBuilder{},
	}
	env.feed.setPrices(map[string]float64{"CSPR": 0.05, "BTC": 100000, "ETH": 3500})

	svc, err := NewService(cfg, env.store, env.feed, env.wallet, env.builder, &logger.EmptyLogger{})
	require.NoError(t, err)
	env.service = svc
	return env
}

// seedIntent puts an intent directly into the service collection.
func (e *testEnv) seedIntent(t *testing.T, intent models.Intent) {
	t.Helper()
	e.service.mu.Lock()
	defer e.service.mu.Unlock()
	e.service.intents = append([]models.Intent{intent}, e.service.intents...)
	require.NoError(t, e.service.saveLocked())
}

func (e *testEnv) intentByID(t *testing.T, id string) models.Intent {
	t.Helper()
	in, err := e.service.Intent(id)
	require.NoError(t, err)
	return *in
}
