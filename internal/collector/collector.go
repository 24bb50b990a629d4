// Package collector gathers per-node and per-entity facts from the mesh
// controller under a hard time budget, tolerating partial failure.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"meshview/internal/domain"
)

// Sentinel errors for the two fatal collection outcomes. Everything else is
// recorded in the error tally and excluded from the result.
var (
	// ErrConnection means the controller could not be reached at all
	ErrConnection = errors.New("collector: controller connection failed")
	// ErrSuccessFloor means too few per-node fetches succeeded to trust the cycle
	ErrSuccessFloor = errors.New("collector: success fraction below floor")
)

// Source is the upstream controller surface the collector reads. Client is
// the production implementation; tests substitute fakes.
type Source interface {
	// ListDevices returns the identities of all known mesh devices
	ListDevices(ctx context.Context) ([]DeviceRef, error)
	// GetDevice returns one device's full facts (neighbors, routes, parent)
	GetDevice(ctx context.Context, ieee string) (domain.Node, error)
	// ListRegistry returns the device registry entries
	ListRegistry(ctx context.Context) ([]domain.RegistryEntry, error)
	// ListEntities returns the live entity states
	ListEntities(ctx context.Context) ([]domain.Entity, error)
	// TriggerScan asks the controller to start a network-wide topology scan
	TriggerScan(ctx context.Context) error
	// Ping is a cheap liveness probe used as a keep-alive
	Ping(ctx context.Context) error
}

// DeviceRef identifies one device in the controller's device list
type DeviceRef struct {
	IEEE string `json:"ieee"`
}

// Config tunes one collection cycle
type Config struct {
	// Timeout is the hard wall-clock ceiling for the whole collection
	Timeout time.Duration
	// MaxConcurrent bounds parallel per-device fetches
	MaxConcurrent int
	// SuccessFloor is the minimum fraction of device fetches that must
	// succeed for the cycle to count (0..1)
	SuccessFloor float64
	// ScanWait, when positive, triggers a controller topology scan and keeps
	// the connection alive for this long. Collection never blocks on it; the
	// controller's already-maintained neighbor/route state is read directly.
	ScanWait time.Duration
	// KeepAlive is the ping interval during a scan wait
	KeepAlive time.Duration
	// Debug enables per-device diagnostic logging
	Debug bool
}

// DefaultConfig returns the defaults used when config values are zero
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		MaxConcurrent: 8,
		SuccessFloor:  0.5,
		KeepAlive:     15 * time.Second,
	}
}

// Result is one collection cycle's output: the best-effort raw facts plus
// the error tally and timing needed to judge them.
type Result struct {
	Nodes        []domain.Node
	Registry     []domain.RegistryEntry
	Entities     []domain.Entity
	Errors       int
	Duration     time.Duration
	CollectionID string
}

// Collector reads raw node and entity facts from a Source
type Collector struct {
	src Source
	cfg Config
}

// New creates a collector, filling config gaps with defaults
func New(src Source, cfg Config) *Collector {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.SuccessFloor <= 0 {
		cfg.SuccessFloor = def.SuccessFloor
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	return &Collector{src: src, cfg: cfg}
}

// Collect runs one cycle. A device or entity fetch that errors or times out
// is counted and excluded, not escalated; the cycle as a whole fails only
// when the controller is unreachable or the success floor is breached.
func (c *Collector) Collect(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{CollectionID: uuid.NewString()}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	refs, err := c.src.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrConnection, err)
	}

	if c.cfg.ScanWait > 0 {
		c.startScanWait(ctx)
	}

	var (
		mu       sync.Mutex
		nodes    = make([]domain.Node, 0, len(refs))
		errCount int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)

	for _, ref := range refs {
		g.Go(func() error {
			node, err := c.src.GetDevice(gctx, ref.IEEE)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errCount++
				if c.cfg.Debug {
					log.Printf("collector: device %s failed: %v", ref.IEEE, err)
				}
				return nil
			}
			nodes = append(nodes, node)
			return nil
		})
	}

	g.Go(func() error {
		entries, err := c.src.ListRegistry(gctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errCount++
			log.Printf("collector: registry fetch failed: %v", err)
			return nil
		}
		result.Registry = entries
		return nil
	})

	g.Go(func() error {
		entities, err := c.src.ListEntities(gctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errCount++
			log.Printf("collector: entity fetch failed: %v", err)
			return nil
		}
		result.Entities = entities
		return nil
	})

	g.Wait()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].IEEE < nodes[j].IEEE })
	result.Nodes = nodes
	result.Errors = errCount
	result.Duration = time.Since(start)

	if len(refs) > 0 {
		fraction := float64(len(nodes)) / float64(len(refs))
		if fraction < c.cfg.SuccessFloor {
			return nil, fmt.Errorf("%w: %d/%d devices succeeded (floor %.0f%%)",
				ErrSuccessFloor, len(nodes), len(refs), c.cfg.SuccessFloor*100)
		}
	}

	return result, nil
}

// startScanWait fires the legacy topology scan and keeps the connection
// alive with periodic pings while the controller works. It runs detached
// from the collection itself: waiting synchronously for a network-wide
// rescan caused multi-minute stalls, so the rest of the cycle reads the
// controller's maintained state without blocking here.
func (c *Collector) startScanWait(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ScanWait)

	go func() {
		defer cancel()

		if err := c.src.TriggerScan(scanCtx); err != nil {
			log.Printf("collector: topology scan trigger failed: %v", err)
			return
		}

		ticker := time.NewTicker(c.cfg.KeepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
				if err := c.src.Ping(scanCtx); err != nil {
					log.Printf("collector: keep-alive failed during scan wait: %v", err)
					return
				}
			}
		}
	}()
}
