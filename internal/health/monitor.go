package health

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/exp/slices"

	"github.com/dreamware/shipquote/internal/dispatch"
	"github.com/dreamware/shipquote/internal/events"
	"github.com/dreamware/shipquote/internal/provider"
)

// Defaults applied by NewMonitor for zero Options fields.
const (
	DefaultTimeout         = 5 * time.Second
	DefaultMinResponseTime = 50 * time.Millisecond
)

// Options configures a Monitor.
type Options struct {
	Publisher       events.Publisher // Receives status.changed events, nil for none
	Now             func() time.Time // Clock for LastCheck/CheckedAt, nil for time.Now
	Timeout         time.Duration    // Per-probe deadline
	MinResponseTime time.Duration    // Floor for reported response times
}

// Monitor probes a fixed provider list.
// Thread-safe: Check may be called concurrently, including while the
// periodic loop is running.
type Monitor struct {
	publisher   events.Publisher        // Destination for transition events
	now         func() time.Time        // Clock
	cancel      context.CancelFunc      // Stops the periodic loop
	regs        []provider.Registration // Read-only after construction
	timeout     time.Duration           // Per-probe deadline
	minResponse time.Duration           // Response time floor
	mu          sync.Mutex              // Protects cancel
	wg          sync.WaitGroup          // Tracks the periodic loop
}

// NewMonitor creates a monitor for regs.
//
// Parameters:
//   - regs: Providers to probe, in reporting order (copied)
//   - opts: Timeouts, clock and publisher; zero values take the defaults
//
// Returns:
//   - *Monitor: Monitor ready for Check or Start
//
// Example:
//
//	monitor := health.NewMonitor(registry.All(), health.Options{})
//	status := monitor.Check(ctx)
func NewMonitor(regs []provider.Registration, opts Options) *Monitor {
	m := &Monitor{
		regs:        slices.Clone(regs),
		publisher:   opts.Publisher,
		now:         opts.Now,
		timeout:     opts.Timeout,
		minResponse: opts.MinResponseTime,
	}
	if m.publisher == nil {
		m.publisher = events.Nop{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.minResponse <= 0 {
		m.minResponse = DefaultMinResponseTime
	}
	return m
}

// Check probes every provider concurrently and returns a fresh snapshot.
// A probe that fails, panics or exceeds the timeout marks its provider
// offline. Check never fails; with no providers it reports OFFLINE.
//
// Parameters:
//   - ctx: Bounds the whole check in addition to the per-probe timeout
//
// Returns:
//   - SystemStatus: Per-provider results in registration order plus the verdict
func (m *Monitor) Check(ctx context.Context) SystemStatus {
	checkedAt := m.now()
	outcomes := dispatch.FanOut(ctx, len(m.regs), m.timeout, func(ctx context.Context, i int) (struct{}, error) {
		return struct{}{}, provider.Probe(ctx, m.regs[i].Provider)
	})

	status := SystemStatus{
		CheckedAt:  checkedAt,
		Providers:  make([]ProviderStatus, len(outcomes)),
		TotalCount: len(outcomes),
	}
	for i, out := range outcomes {
		ps := ProviderStatus{
			ProviderID:   m.regs[i].ID,
			ProviderName: m.regs[i].Name,
			LastCheck:    checkedAt,
			ResponseTime: max(out.Elapsed, m.minResponse),
			Status:       Online,
		}
		if out.Err != nil {
			ps.Status = Offline
			ps.Error = out.Err.Error()
		} else {
			status.ActiveCount++
		}
		status.Providers[i] = ps
	}
	status.Status = Verdict(status.ActiveCount, status.TotalCount)
	return status
}

// Start runs Check every interval in a background goroutine, beginning
// immediately. onStatus, if non-nil, receives every snapshot. When the
// verdict differs from the previous tick a status.changed event is
// published. Calling Start on a running monitor does nothing.
//
// Parameters:
//   - ctx: Stops the loop when canceled
//   - interval: Time between checks
//   - onStatus: Optional callback invoked from the loop goroutine
//
// Example:
//
//	monitor.Start(ctx, 30*time.Second, func(s health.SystemStatus) {
//	    log.Infof("providers %d/%d online", s.ActiveCount, s.TotalCount)
//	})
//	defer monitor.Stop()
func (m *Monitor) Start(ctx context.Context, interval time.Duration, onStatus func(SystemStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.run(loopCtx, interval, onStatus)
}

// Stop ends the periodic loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Monitor) run(ctx context.Context, interval time.Duration, onStatus func(SystemStatus)) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("health monitor started for %d providers, interval %v", len(m.regs), interval)

	var previous SystemVerdict
	tick := func() {
		status := m.Check(ctx)
		if ctx.Err() != nil {
			return
		}
		if onStatus != nil {
			onStatus(status)
		}
		if previous != "" && previous != status.Status {
			m.transition(ctx, previous, status)
		}
		previous = status.Status
	}

	tick()
	for {
		select {
		case <-ticker.C:
			tick()
		case <-ctx.Done():
			log.Info("health monitor stopped")
			return
		}
	}
}

func (m *Monitor) transition(ctx context.Context, from SystemVerdict, status SystemStatus) {
	log.Infof("system status changed %s -> %s (%d/%d providers online)",
		from, status.Status, status.ActiveCount, status.TotalCount)

	e := events.New(events.TypeStatusChanged, status.CheckedAt, events.StatusChanged{
		From:        string(from),
		To:          string(status.Status),
		ActiveCount: status.ActiveCount,
		TotalCount:  status.TotalCount,
	})
	out := dispatch.Call(ctx, m.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.publisher.Publish(ctx, "system", e)
	})
	if out.Err != nil {
		log.Warnf("publish %s: %v", events.TypeStatusChanged, out.Err)
	}
}
