/*
scheduler.go - Background schedulers

PURPOSE:
  RecurringScheduler books the due occurrence of every recurring
  transaction template. BudgetAlertScheduler re-checks the current month's
  budgets and sends a usage alert for each one above its threshold.

DESIGN:
  - Each scheduler runs one background goroutine on a ticker
  - The first check runs immediately on Start
  - A check failure is logged and retried on the next tick
  - Stop waits for an in-flight check to finish

CONFIGURATION:
  - Interval: How often to check (config: recurring / budget alert interval)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  recurring := NewRecurringScheduler(handler.Transactions, time.Hour, log)
  recurring.Start()
  // ... later
  recurring.Stop()

SEE ALSO:
  - handlers.go: RunRecurring endpoint (manual trigger)
  - ledger/service.go: Service.RunRecurring
  - ledger/budget.go: BudgetService.AlertsDue
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// TICKER LOOP
// =============================================================================

// loop runs check on a ticker until stopped.
type loop struct {
	name     string
	interval time.Duration
	check    func(ctx context.Context, now time.Time)
	now      func() time.Time
	log      zerolog.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func (l *loop) start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return
	}
	l.ticker = time.NewTicker(l.interval)
	l.stop = make(chan struct{})
	l.running = true
	l.wg.Add(1)

	go l.run()

	l.log.Info().Str("scheduler", l.name).Dur("interval", l.interval).Msg("Scheduler started")
}

func (l *loop) halt() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	l.ticker.Stop()
	close(l.stop)
	l.wg.Wait()
	l.running = false
	l.log.Info().Str("scheduler", l.name).Msg("Scheduler stopped")
}

func (l *loop) run() {
	defer l.wg.Done()

	// Run immediately on start
	l.tick()

	for {
		select {
		case <-l.ticker.C:
			l.tick()
		case <-l.stop:
			return
		}
	}
}

func (l *loop) tick() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	l.check(ctx, l.now())
}

// =============================================================================
// RECURRING TRANSACTIONS
// =============================================================================

// RecurringScheduler books due recurring transactions.
type RecurringScheduler struct {
	Service *ledger.Service
	Enabled bool

	loop loop
}

// NewRecurringScheduler creates a scheduler checking every interval.
func NewRecurringScheduler(svc *ledger.Service, interval time.Duration, log zerolog.Logger) *RecurringScheduler {
	s := &RecurringScheduler{Service: svc, Enabled: true}
	s.loop = loop{name: "recurring", interval: interval, check: s.Check, now: time.Now, log: log}
	return s
}

// Start begins the scheduler.
func (s *RecurringScheduler) Start() {
	if !s.Enabled {
		s.loop.log.Info().Str("scheduler", s.loop.name).Msg("Scheduler disabled, not starting")
		return
	}
	s.loop.start()
}

// Stop stops the scheduler.
func (s *RecurringScheduler) Stop() { s.loop.halt() }

// Check runs one recurring pass for now.
func (s *RecurringScheduler) Check(ctx context.Context, now time.Time) {
	log := s.loop.log.With().Str("scheduler", s.loop.name).Logger()

	run, err := s.Service.RunRecurring(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("Recurring check failed")
		return
	}
	for id, err := range run.Failed {
		log.Warn().Err(err).Str("template_id", string(id)).Msg("Recurring occurrence failed")
	}
	if len(run.Created) > 0 || len(run.Failed) > 0 {
		log.Info().
			Int("checked", run.Checked).
			Int("created", len(run.Created)).
			Int("failed", len(run.Failed)).
			Msg("Recurring check completed")
	}
}

// =============================================================================
// BUDGET ALERTS
// =============================================================================

// BudgetAlertScheduler sends usage alerts for the current month's budgets.
type BudgetAlertScheduler struct {
	Budgets  *ledger.BudgetService
	Notifier ledger.Notifier
	Enabled  bool

	loop loop
}

// NewBudgetAlertScheduler creates a scheduler checking every interval.
func NewBudgetAlertScheduler(budgets *ledger.BudgetService, notifier ledger.Notifier, interval time.Duration, log zerolog.Logger) *BudgetAlertScheduler {
	s := &BudgetAlertScheduler{Budgets: budgets, Notifier: notifier, Enabled: true}
	s.loop = loop{name: "budget-alerts", interval: interval, check: s.Check, now: time.Now, log: log}
	return s
}

// Start begins the scheduler.
func (s *BudgetAlertScheduler) Start() {
	if !s.Enabled {
		s.loop.log.Info().Str("scheduler", s.loop.name).Msg("Scheduler disabled, not starting")
		return
	}
	s.loop.start()
}

// Stop stops the scheduler.
func (s *BudgetAlertScheduler) Stop() { s.loop.halt() }

// Check notifies every budget of now's month above its alert threshold.
func (s *BudgetAlertScheduler) Check(ctx context.Context, now time.Time) {
	log := s.loop.log.With().Str("scheduler", s.loop.name).Logger()

	month := ledger.CurrentMonth(now)
	due, err := s.Budgets.AlertsDue(ctx, month)
	if err != nil {
		log.Error().Err(err).Str("month", month.String()).Msg("Budget alert check failed")
		return
	}
	for _, b := range due {
		s.Notifier.Notify(ledger.BudgetAlertNotice(b))
	}
	if len(due) > 0 {
		log.Info().Str("month", month.String()).Int("alerts", len(due)).Msg("Budget alerts sent")
	}
}
