package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/casperlink/intent-engine/pkg/circuitbreaker"
	"github.com/casperlink/intent-engine/pkg/config"
	"github.com/casperlink/intent-engine/pkg/deploy"
	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/metrics"
	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/casperlink/intent-engine/pkg/pricefeed"
	"github.com/casperlink/intent-engine/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
)

// executionStaleTimeout is how long an execution reservation may live before
// a new attempt can reclaim it.
const executionStaleTimeout = 5 * time.Minute

// Service runs the intent lifecycle: it polls prices for condition-watching
// intents, releases scheduled DCA executions, and submits execution
// transactions through the connected wallet.
type Service struct {
	store   store.Store
	feed    pricefeed.Source
	wallet  Wallet
	builder RequestBuilder
	log     logger.Logger

	pollInterval time.Duration
	dcaTick      time.Duration
	autoExecute  bool
	now          func() time.Time

	// mu guards intents; the slice is the single source of truth and every
	// mutation is a whole-collection save.
	mu      sync.Mutex
	intents []models.Intent

	accountMu sync.Mutex
	account   string

	inflight *inFlightGate

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.CircuitBreaker
	breakerCfg config.CircuitBreakerConfig

	feedMu        sync.Mutex
	lastFeedAt    time.Time
	lastFeedCount int
	lastPrices    map[string]float64
}

// NewService loads the stored collection and prepares the lifecycle loops.
// A corrupt store is logged and treated as empty rather than refusing to
// start.
func NewService(cfg *config.Config, st store.Store, feed pricefeed.Source, wallet Wallet, builder RequestBuilder, log logger.Logger) (*Service, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	intents, err := st.LoadAll()
	if err != nil {
		if !errors.Is(err, store.ErrStorageCorrupt) {
			return nil, fmt.Errorf("loading intent store: %w", err)
		}
		log.ErrorWith(logger.Store, "stored intents unreadable, starting empty: %v", err)
		intents = nil
	}

	s := &Service{
		store:        st,
		feed:         feed,
		wallet:       wallet,
		builder:      builder,
		log:          log,
		pollInterval: cfg.PollingInterval,
		dcaTick:      cfg.DCATickInterval,
		autoExecute:  cfg.AutoExecute,
		now:          time.Now,
		intents:      intents,
		inflight:     newInFlightGate(executionStaleTimeout),
		breakers:     make(map[string]*circuitbreaker.CircuitBreaker),
		breakerCfg:   cfg.CircuitBreaker,
		account:      cfg.Account,
	}
	s.updateGauges()
	return s, nil
}

// Start runs the polling and DCA loops until the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.log.InfoWith(logger.Engine, "intent engine started with %d stored intents (poll %s, dca tick %s)",
		len(s.intents), s.pollInterval, s.dcaTick)

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()
	dcaTicker := time.NewTicker(s.dcaTick)
	defer dcaTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoWith(logger.Engine, "intent engine stopping")
			return ctx.Err()
		case <-pollTicker.C:
			s.pollTick(ctx)
		case <-dcaTicker.C:
			s.dcaTickOnce(ctx)
		}
	}
}

// pollTick fetches one price snapshot and advances every watching intent
// against it. All intents in a tick see the same snapshot. Skipped entirely
// when nothing is watching, so an idle engine makes no feed requests.
func (s *Service) pollTick(ctx context.Context) {
	if s.countByStatus(models.StatusWatching) == 0 {
		return
	}

	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		s.log.ErrorWith(logger.Feed, "price snapshot unavailable, holding watching intents: %v", err)
		return
	}

	s.feedMu.Lock()
	s.lastFeedAt = snap.FetchedAt
	s.lastFeedCount = len(snap.Prices)
	s.lastPrices = snap.Prices
	s.feedMu.Unlock()

	ready := s.advanceWatching(snap)
	if !s.autoExecute {
		return
	}
	for _, id := range ready {
		if _, err := s.Execute(ctx, id); err != nil {
			s.log.ErrorWith(logger.Exec, "auto-execution of intent %s failed: %v", id, err)
		}
	}
}

// advanceWatching promotes watching intents whose condition the snapshot
// satisfies and returns their IDs. Persists only when something changed.
func (s *Service) advanceWatching(snap *pricefeed.Snapshot) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []string
	for i := range s.intents {
		in := &s.intents[i]
		if in.Status != models.StatusWatching {
			continue
		}
		if !IsConditionMet(in, snap.Prices) {
			continue
		}
		in.Status = models.StatusReady
		ready = append(ready, in.ID)
		metrics.ConditionsTriggered.WithLabelValues(string(in.IntentType)).Inc()
		s.log.NoticeWith(logger.Engine, "intent %s condition met: %s %s %.4f (target %.4f)",
			in.ID, in.PriceToken, in.PriceCondition, snap.Prices[in.PriceToken], in.TargetPrice)
	}

	if len(ready) > 0 {
		if err := s.saveLocked(); err != nil {
			s.log.ErrorWith(logger.Store, "persisting triggered intents: %v", err)
		}
	}
	return ready
}

// dcaTickOnce releases at most one due DCA execution per tick, keeping
// wallet prompts serialized.
func (s *Service) dcaTickOnce(ctx context.Context) {
	if !s.autoExecute || s.currentAccount() == "" {
		return
	}

	now := s.now()
	s.mu.Lock()
	var due string
	for i := range s.intents {
		if DueForExecution(&s.intents[i], now) {
			due = s.intents[i].ID
			break
		}
	}
	s.mu.Unlock()
	if due == "" {
		return
	}

	if _, err := s.Execute(ctx, due); err != nil {
		if !errors.Is(err, ErrExecutionInFlight) {
			s.log.ErrorWith(logger.DCA, "scheduled execution of intent %s failed: %v", due, err)
		}
	}
}

// Execute submits the execution transaction for one intent. At most one
// attempt per intent runs at a time; concurrent callers get
// ErrExecutionInFlight. The intent keeps its pre-execution status on any
// failure so it can be re-triggered.
func (s *Service) Execute(ctx context.Context, intentID string) (string, error) {
	account := s.currentAccount()
	if account == "" {
		return "", ErrNoAccount
	}

	if !s.inflight.TryAcquire(intentID, s.now()) {
		return "", ErrExecutionInFlight
	}
	defer s.inflight.Release(intentID)

	s.mu.Lock()
	idx := s.indexLocked(intentID)
	if idx < 0 {
		s.mu.Unlock()
		return "", ErrIntentNotFound
	}
	intent := s.intents[idx]
	s.mu.Unlock()

	switch intent.Status {
	case models.StatusReady, models.StatusPending, models.StatusScheduled:
	default:
		return "", fmt.Errorf("%w: intent %s is %s", ErrNotExecutable, intentID, intent.Status)
	}

	breaker := s.breakerFor(intent.FromChain)
	if breaker.IsOpen() {
		s.log.DebugWith(logger.Exec, "venue %s circuit open, skipping intent %s", intent.FromChain, intentID)
		return "", ErrVenueUnavailable
	}

	payload, err := s.buildExecution(ctx, &intent, account)
	if err != nil {
		return "", &ExecutionError{IntentID: intentID, Err: err}
	}

	timer := prometheus.NewTimer(metrics.ExecutionDuration.WithLabelValues(string(intent.IntentType)))
	txHash, err := s.wallet.Send(ctx, payload, account)
	timer.ObserveDuration()

	if err != nil {
		if errors.Is(err, ErrWalletCancelled) {
			metrics.Executions.WithLabelValues(string(intent.IntentType), "cancelled").Inc()
			s.log.InfoWith(logger.Exec, "execution of intent %s cancelled by user", intentID)
			return "", err
		}
		metrics.Executions.WithLabelValues(string(intent.IntentType), "error").Inc()
		if breaker.RecordFailure() {
			s.log.ErrorWith(logger.Exec, "venue %s circuit opened after repeated failures", intent.FromChain)
		}
		return "", &ExecutionError{IntentID: intentID, Err: err}
	}

	breaker.Reset()
	metrics.Executions.WithLabelValues(string(intent.IntentType), "success").Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	idx = s.indexLocked(intentID)
	if idx < 0 {
		return txHash, ErrIntentNotFound
	}
	in := &s.intents[idx]

	if in.IsDCA {
		RecordExecution(in, txHash, s.now())
		s.log.InfoWith(logger.DCA, "intent %s executed %s (tx %s)", in.ID, FormatProgress(in), txHash)
	} else {
		in.Status = models.StatusExecuting
		in.TxHash = txHash
		s.log.InfoWith(logger.Exec, "intent %s executing (tx %s)", in.ID, txHash)
	}

	if err := s.saveLocked(); err != nil {
		s.log.ErrorWith(logger.Store, "persisting executed intent %s: %v", intentID, err)
	}
	return txHash, nil
}

// buildExecution picks the payload flavor for the intent. Local intents swap
// directly through the router; registered cross-venue intents go through the
// registry, with a transfer variant when the output token differs.
func (s *Service) buildExecution(ctx context.Context, intent *models.Intent, account string) ([]byte, error) {
	p := deploy.Params{
		Sender:      account,
		FromToken:   intent.FromToken,
		ToToken:     intent.ToToken,
		FromChain:   intent.FromChain,
		ToChain:     intent.ToChain,
		Amount:      amountValue(intent.Amount),
		ExpectedOut: s.estimateOut(ctx, intent),
	}

	if intent.IsLocalIntent {
		return s.builder.VenueSwapDeploy(p)
	}
	if intent.FromToken != intent.ToToken {
		return s.builder.ExecuteWithTransferDeploy(intent.ID, p)
	}
	return s.builder.ExecuteIntentDeploy(intent.ID, p)
}

// estimateOut estimates the swap output in motes from spot prices, feeding
// the builder's slippage floor. The last poll snapshot is preferred; without
// one the feed is asked directly (served from its cache while fresh). A
// missing quote yields zero, which disables the floor for that swap.
func (s *Service) estimateOut(ctx context.Context, intent *models.Intent) uint64 {
	s.feedMu.Lock()
	prices := s.lastPrices
	s.feedMu.Unlock()

	if prices == nil {
		snap, err := s.feed.Snapshot(ctx)
		if err != nil {
			s.log.DebugWith(logger.Exec, "no prices for output estimate: %v", err)
			return 0
		}
		prices = snap.Prices
	}

	return deploy.EstimateOut(amountValue(intent.Amount), prices[intent.FromToken], prices[intent.ToToken])
}

// ConfirmCompletion moves an executing intent to its terminal state once the
// transaction is known to have landed.
func (s *Service) ConfirmCompletion(intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(intentID)
	if idx < 0 {
		return ErrIntentNotFound
	}
	in := &s.intents[idx]
	if in.Status != models.StatusExecuting {
		return fmt.Errorf("%w: intent %s is %s", ErrNotExecutable, intentID, in.Status)
	}
	in.Status = models.StatusCompleted
	s.log.InfoWith(logger.Engine, "intent %s completed", intentID)
	return s.saveLocked()
}

// HandleWalletEvent tracks the connected account across wallet provider
// events. Signing out does not pause the loops; executions simply fail with
// ErrNoAccount until an account returns.
func (s *Service) HandleWalletEvent(event, account string) {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	switch event {
	case EventSignedIn, EventSwitchedAccount:
		s.account = account
		s.log.InfoWith(logger.Engine, "wallet account connected: %s", account)
	case EventSignedOut:
		s.account = ""
		s.log.InfoWith(logger.Engine, "wallet account disconnected")
	}
}

func (s *Service) currentAccount() string {
	s.accountMu.Lock()
	defer s.accountMu.Unlock()
	return s.account
}

// Intents returns a copy of the collection in stored order.
func (s *Service) Intents() []models.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Intent, len(s.intents))
	copy(out, s.intents)
	return out
}

// Intent returns one intent by ID.
func (s *Service) Intent(intentID string) (*models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(intentID)
	if idx < 0 {
		return nil, ErrIntentNotFound
	}
	in := s.intents[idx]
	return &in, nil
}

// StatusCounts returns the number of intents per lifecycle status.
func (s *Service) StatusCounts() map[models.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[models.Status]int)
	for i := range s.intents {
		counts[s.intents[i].Status]++
	}
	return counts
}

// Countdowns returns the seconds remaining until the next execution for
// each scheduled DCA intent, keyed by intent ID.
func (s *Service) Countdowns() map[string]int64 {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64)
	for i := range s.intents {
		in := &s.intents[i]
		if in.Status == models.StatusScheduled && in.NextExecutionTime > 0 {
			out[in.ID] = in.RemainingSeconds(now)
		}
	}
	return out
}

// VenueStates reports each venue's circuit breaker as open or closed.
func (s *Service) VenueStates() map[string]bool {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()
	states := make(map[string]bool, len(s.breakers))
	for venue, cb := range s.breakers {
		states[venue] = cb.IsOpen()
	}
	return states
}

// ResetVenue closes the circuit breaker for a venue.
func (s *Service) ResetVenue(venue string) bool {
	s.breakersMu.Lock()
	cb, ok := s.breakers[venue]
	s.breakersMu.Unlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// FeedStatus returns when the last snapshot was taken and how many quotes it
// carried. A zero time means no snapshot has been taken yet.
func (s *Service) FeedStatus() (time.Time, int) {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()
	return s.lastFeedAt, s.lastFeedCount
}

// InFlight returns the number of live execution reservations.
func (s *Service) InFlight() int {
	return s.inflight.Active()
}

// Close persists nothing extra; the collection is saved on every mutation.
func (s *Service) Close() error {
	return s.store.Close()
}

func (s *Service) breakerFor(venue string) *circuitbreaker.CircuitBreaker {
	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()
	cb, ok := s.breakers[venue]
	if !ok {
		cb = circuitbreaker.NewCircuitBreaker(
			s.breakerCfg.Enabled,
			s.breakerCfg.Threshold,
			s.breakerCfg.WindowDuration,
			s.breakerCfg.ResetTimeout,
		)
		s.breakers[venue] = cb
	}
	return cb
}

func (s *Service) countByStatus(status models.Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.intents {
		if s.intents[i].Status == status {
			n++
		}
	}
	return n
}

// indexLocked finds the position of an intent by ID. Callers hold mu.
func (s *Service) indexLocked(intentID string) int {
	for i := range s.intents {
		if s.intents[i].ID == intentID {
			return i
		}
	}
	return -1
}

// saveLocked persists the whole collection and refreshes the gauges.
// Callers hold mu.
func (s *Service) saveLocked() error {
	if err := s.store.SaveAll(s.intents); err != nil {
		return err
	}
	metrics.StoreWrites.Inc()
	s.updateGaugesLocked()
	return nil
}

func (s *Service) updateGauges() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateGaugesLocked()
}

func (s *Service) updateGaugesLocked() {
	watching, scheduled := 0, 0
	for i := range s.intents {
		switch s.intents[i].Status {
		case models.StatusWatching:
			watching++
		case models.StatusScheduled:
			scheduled++
		}
	}
	metrics.WatchingIntents.Set(float64(watching))
	metrics.ScheduledIntents.Set(float64(scheduled))
	metrics.StoredIntents.Set(float64(len(s.intents)))
}
