package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/eduflow-br/eduflow/internal/pkg/env"
)

// PixSweeper expires lapsed PIX offers and reports how many it transitioned.
type PixSweeper interface {
	ExpireDue(ctx context.Context) (int, error)
}

// PeriodSweeper suspends active subscriptions whose paid period lapsed.
type PeriodSweeper interface {
	SweepLapsedPeriods(ctx context.Context) (int, error)
}

// Manager runs the periodic lifecycle sweeps: PIX offer expiration every few
// minutes and the subscription period sweep once a day. Sweeps are also
// triggerable manually from the admin API via the RunNow methods.
type Manager struct {
	pix    PixSweeper
	period PeriodSweeper

	pixTicker    *time.Ticker
	periodTicker *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
}

const (
	defaultPixSweepInterval    = 5 * time.Minute
	defaultPeriodSweepInterval = 24 * time.Hour
	sweepTimeout               = 10 * time.Minute
)

func NewManager(pix PixSweeper, period PeriodSweeper) *Manager {
	return &Manager{
		pix:    pix,
		period: period,
		stopCh: make(chan struct{}),
	}
}

// Start launches the sweep workers. Safe to call again after Stop.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate the stop channel on each start cycle so the manager can be
	// restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Scheduler] Starting lifecycle sweeps")

	pixInterval := envDuration("PIX_SWEEP_INTERVAL_MINUTES", defaultPixSweepInterval)
	periodInterval := envDuration("PERIOD_SWEEP_INTERVAL_MINUTES", defaultPeriodSweepInterval)

	m.pixTicker = time.NewTicker(pixInterval)
	m.wg.Add(1)
	go m.pixWorker()

	m.periodTicker = time.NewTicker(periodInterval)
	m.wg.Add(1)
	go m.periodWorker()

	log.Infof("[Scheduler] Started (pix sweep every %s, period sweep every %s)", pixInterval, periodInterval)
}

// Stop halts the workers and waits for in-flight sweeps to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Scheduler] Stopping lifecycle sweeps...")

	if m.pixTicker != nil {
		m.pixTicker.Stop()
	}
	if m.periodTicker != nil {
		m.periodTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Scheduler] Stopped")
}

// IsRunning returns whether the manager is currently running.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) pixWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] PIX sweep worker stopping")
			return
		case <-m.pixTicker.C:
			if _, err := m.RunPixSweepNow(); err != nil {
				log.Errorf("[Scheduler] PIX sweep error: %v", err)
			}
		}
	}
}

func (m *Manager) periodWorker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			log.Info("[Scheduler] Period sweep worker stopping")
			return
		case <-m.periodTicker.C:
			if _, err := m.RunPeriodSweepNow(); err != nil {
				log.Errorf("[Scheduler] Period sweep error: %v", err)
			}
		}
	}
}

// RunPixSweepNow runs one PIX expiration pass and returns how many offers
// were expired. Also used by the admin trigger endpoint.
func (m *Manager) RunPixSweepNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := m.pix.ExpireDue(ctx)
	if n > 0 {
		log.Infof("[Scheduler] PIX sweep expired %d offers", n)
	}
	return n, err
}

// RunPeriodSweepNow runs one subscription period pass and returns how many
// subscriptions were suspended. Also used by the admin trigger endpoint.
func (m *Manager) RunPeriodSweepNow() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	n, err := m.period.SweepLapsedPeriods(ctx)
	if n > 0 {
		log.Infof("[Scheduler] Period sweep suspended %d subscriptions", n)
	}
	return n, err
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := env.GetEnvAsInt(key, 0); v > 0 {
		return time.Duration(v) * time.Minute
	}
	return fallback
}
