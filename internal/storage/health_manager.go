package storage

import (
	"context"
	"sync"
	"time"
)

// Health status values
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Health is the last known state of a storage backend
type Health struct {
	Backend   string    `json:"backend"`
	LastCheck time.Time `json:"last_check"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// HealthChecker defines the interface for storage backends to implement health checks
type HealthChecker interface {
	CheckHealth(ctx context.Context) *Health
}

// HealthManager manages storage health status in memory
type HealthManager struct {
	mu     sync.RWMutex
	health map[string]*Health
}

// NewHealthManager creates a new health manager
func NewHealthManager() *HealthManager {
	return &HealthManager{
		health: make(map[string]*Health),
	}
}

// Check runs a health check and records the result
func (hm *HealthManager) Check(ctx context.Context, name string, checker HealthChecker) *Health {
	h := checker.CheckHealth(ctx)
	h.Backend = name
	hm.UpdateHealth(name, h)
	return h
}

// UpdateHealth updates the health status for a storage backend
func (hm *HealthManager) UpdateHealth(name string, health *Health) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	// Clone the health data to avoid concurrent modification
	healthCopy := *health
	healthCopy.Backend = name
	hm.health[name] = &healthCopy
}

// HealthFromErr builds a Health record from a ping result
func HealthFromErr(err error, okMessage string) *Health {
	h := &Health{LastCheck: time.Now()}
	if err != nil {
		h.Status = StatusUnhealthy
		h.Message = "ping failed"
		h.Error = err.Error()
		return h
	}
	h.Status = StatusHealthy
	h.Message = okMessage
	return h
}
