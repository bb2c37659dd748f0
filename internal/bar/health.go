package bar

import (
	"fmt"
	"sync"
	"time"
)

// HealthStatus is the health of the bar or of one block.
type HealthStatus string

const (
	// HealthOK means every block is running.
	HealthOK HealthStatus = "ok"
	// HealthDegraded means some blocks have failed.
	HealthDegraded HealthStatus = "degraded"
	// HealthUnhealthy means the bar shows nothing but errors, or is not running.
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the result of Bar.Health.
type HealthCheck struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Uptime    time.Duration `json:"uptime"`
	Message   string        `json:"message"`
	Blocks    []BlockHealth `json:"blocks"`
}

// BlockHealth describes one configured block.
type BlockHealth struct {
	ID     int          `json:"id"`
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	// Message is the error shown by a failed block.
	Message string `json:"message,omitempty"`
	// LastUpdated is when the block last sent an update.
	LastUpdated time.Time `json:"last_updated,omitzero"`
	// Circuit is the state of the block's restart circuit.
	Circuit string `json:"circuit"`
}

// healthBoard is written by the runtime loop and read by Health, which may
// run on another goroutine.
type healthBoard struct {
	mu      sync.RWMutex
	started time.Time
	blocks  []BlockHealth
}

func (h *healthBoard) start(now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = now
}

func (h *healthBoard) add(id int, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks = append(h.blocks, BlockHealth{ID: id, Name: name, Status: HealthOK})
}

func (h *healthBoard) updated(id int, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks[id].Status = HealthOK
	h.blocks[id].Message = ""
	h.blocks[id].LastUpdated = now
}

func (h *healthBoard) failed(id int, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blocks[id].Status = HealthUnhealthy
	h.blocks[id].Message = message
}

// Health reports the state of the bar and its blocks. It is safe to call
// while Run is active.
func (b *Bar) Health() HealthCheck {
	now := time.Now()

	b.health.mu.RLock()
	started := b.health.started
	blocks := make([]BlockHealth, len(b.health.blocks))
	copy(blocks, b.health.blocks)
	b.health.mu.RUnlock()

	failed := 0
	for i := range blocks {
		blocks[i].Circuit = b.slots[i].breaker.State().String()
		if blocks[i].Status != HealthOK {
			failed++
		}
	}

	check := HealthCheck{Timestamp: now, Blocks: blocks}
	if !started.IsZero() {
		check.Uptime = now.Sub(started)
	}
	switch {
	case started.IsZero():
		check.Status = HealthUnhealthy
		check.Message = "Bar is not running"
	case failed > 0 && failed == len(blocks):
		check.Status = HealthUnhealthy
		check.Message = "All blocks failed"
	case failed > 0:
		check.Status = HealthDegraded
		check.Message = fmt.Sprintf("%d of %d blocks failed", failed, len(blocks))
	default:
		check.Status = HealthOK
		check.Message = "All blocks healthy"
	}
	return check
}
