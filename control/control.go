// Package control implements the Idle, Manual and Static-Schedule
// controllers, sharing a common base-controller skeleton: setup, an outer
// reconnect loop, and an inner control loop. The Static-Schedule controller
// also makes a best-effort release of control on the way out; Idle and
// Manual do not.
package control

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/hartman-ems/battery-ems/modbusmgr"
	"github.com/hartman-ems/battery-ems/telemetry"
)

// Mode identifies which control algorithm a Controller implements.
type Mode int

const (
	ModeIdle Mode = iota + 1
	ModeManual
	ModeStatic
	ModeDynamic
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeManual:
		return "manual"
	case ModeStatic:
		return "static"
	case ModeDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// ErrModeNotImplemented is returned by DynamicController.Run: the dynamic
// mode is reserved but unimplemented.
var ErrModeNotImplemented = errors.New("control: dynamic mode is not implemented")

// Stats is the Controller-owned snapshot, refreshed in place each loop
// iteration. Nil fields mean "no data yet".
type Stats struct {
	Inverters   map[string]telemetry.InverterReading
	DataManager map[telemetry.Phase]telemetry.PhaseReading
	InvControl  map[telemetry.Phase]PhaseControl
}

// PhaseControl is one phase's powersolver inputs/outputs, exposed verbatim
// in the status snapshot.
type PhaseControl struct {
	PBapp, PBnow, PGnow, VGnow, Imax float64
	PGmax, PGmin                     float64
	Pother                           float64
	PBlimMin, PBlimMax               float64
	PBsent                           int64
}

// InverterEndpoint is the subset of inverter configuration a controller
// needs to build a modbusmgr.ClientEndpoint and phase map.
type InverterEndpoint struct {
	Name           string
	Host           string
	Port           int
	ConnectedPhase telemetry.Phase
}

// DataManagerEndpoint is the subset of data-manager configuration a
// controller needs. Host == "" means no grid meter is configured.
type DataManagerEndpoint struct {
	Host           string
	Port           int
	MaxFuseCurrent float64
}

const dataManagerName = "Data Manager"

// Controller is the capability set every control mode variant implements.
type Controller interface {
	Mode() Mode
	Run(ctx context.Context) error
	Stop()
	Status() ControllerStatus
}

// ControllerStatus is what Supervisor.status() reports for the active
// controller.
type ControllerStatus struct {
	Running      bool
	RunningStart time.Time
	Mode         Mode
	Stats        *Stats
}

// Deps are the dependencies every concrete controller needs, injected
// rather than reached for through global state.
type Deps struct {
	Inverters      []InverterEndpoint
	DataManager    DataManagerEndpoint
	LoopDelay      time.Duration
	Logger         *log.Logger
}

// base implements the shared skeleton described for every controller: an
// outer reconnect loop around a mode-specific inner loop, with a 10-second
// backoff between reconnect attempts.
type base struct {
	deps Deps

	mu           sync.Mutex
	running      bool
	runningStart time.Time
	stats        *Stats

	cancel context.CancelFunc
	done   chan struct{}
}

const reconnectDelay = 10 * time.Second

func newBase(deps Deps) base {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	if deps.LoopDelay <= 0 {
		deps.LoopDelay = 10 * time.Second
	}
	return base{deps: deps}
}

func (b *base) Status() ControllerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return ControllerStatus{
		Running:      b.running,
		RunningStart: b.runningStart,
		Stats:        b.stats,
	}
}

func (b *base) setStats(s *Stats) {
	b.mu.Lock()
	b.stats = s
	b.mu.Unlock()
}

func (b *base) isRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Stop transitions Running -> Draining: the inner loop observes this and
// unwinds on its next cancellation checkpoint.
func (b *base) Stop() {
	b.mu.Lock()
	b.running = false
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Unlock()
}

// runOuter drives the Connecting -> Running -> Draining -> Closed state
// machine: construct fresh managers, connect both, run the inner loop,
// release on the way out, close, then back off before trying again.
func (b *base) runOuter(ctx context.Context, inner func(ctx context.Context, inverters, dm *modbusmgr.Manager) error, release func(inverters *modbusmgr.Manager)) error {
	b.mu.Lock()
	b.running = true
	b.runningStart = time.Now()
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.mu.Unlock()

	logger := b.deps.Logger

	for b.isRunning() {
		inverters := modbusmgr.NewManager(endpointsFor(b.deps.Inverters), logger)
		dm := modbusmgr.NewManager(dmEndpoint(b.deps.DataManager), logger)

		err := func() error {
			if cerr := inverters.Connect(); cerr != nil {
				return cerr
			}
			if cerr := dm.Connect(); cerr != nil {
				return cerr
			}
			return inner(ctx, inverters, dm)
		}()

		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				logger.Printf("control: loop cancelled")
				b.Stop()
			} else {
				logger.Printf("control: encountered an error: %v", err)
			}
		}

		if release != nil {
			release(inverters)
		}
		inverters.Close()
		dm.Close()

		if b.isRunning() {
			select {
			case <-time.After(reconnectDelay):
			case <-ctx.Done():
				b.mu.Lock()
				b.running = false
				b.mu.Unlock()
			}
		}
	}

	return nil
}

func endpointsFor(invs []InverterEndpoint) []modbusmgr.ClientEndpoint {
	out := make([]modbusmgr.ClientEndpoint, 0, len(invs))
	for _, inv := range invs {
		out = append(out, modbusmgr.ClientEndpoint{Name: inv.Name, Host: inv.Host, Port: inv.Port})
	}
	return out
}

func dmEndpoint(dm DataManagerEndpoint) []modbusmgr.ClientEndpoint {
	if dm.Host == "" {
		return nil
	}
	return []modbusmgr.ClientEndpoint{{Name: dataManagerName, Host: dm.Host, Port: dm.Port}}
}

func phaseMapFor(invs []InverterEndpoint) telemetry.PhaseMap {
	pm := make(telemetry.PhaseMap, len(invs))
	for _, inv := range invs {
		pm[inv.Name] = inv.ConnectedPhase
	}
	return pm
}

func phaseInverters(invs []InverterEndpoint) map[telemetry.Phase][]string {
	out := map[telemetry.Phase][]string{telemetry.L1: nil, telemetry.L2: nil, telemetry.L3: nil}
	for _, inv := range invs {
		out[inv.ConnectedPhase] = append(out[inv.ConnectedPhase], inv.Name)
	}
	return out
}
