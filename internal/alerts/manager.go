package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"velowind/internal/models"
	"velowind/internal/safety"
)

// WarningLifetime is how long an issued warning stays current
const WarningLifetime = time.Hour

// Callback receives issued warnings. Returned errors and panics are logged
// and never reach other subscribers.
type Callback func(ctx context.Context, warning models.WindWarning) error

type subscriber struct {
	cb Callback
}

// Manager owns the subscriber list and issues warnings against the global
// alert thresholds. It is safe for concurrent use.
type Manager struct {
	mu          sync.RWMutex
	subscribers []*subscriber
	thresholds  models.Thresholds
	logger      *slog.Logger
	now         func() time.Time
}

// NewManager creates a manager using the given alert thresholds
func NewManager(thresholds models.Thresholds, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// Register adds cb and returns a function removing exactly this registration.
// Calling the returned function more than once is a no-op.
func (m *Manager) Register(cb Callback) func() {
	sub := &subscriber{cb: cb}

	m.mu.Lock()
	m.subscribers = append(m.subscribers, sub)
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subscribers {
				if s == sub {
					m.subscribers = append(m.subscribers[:i:i], m.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// Count returns the number of registered callbacks
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers)
}

// Thresholds returns the global alert thresholds
func (m *Manager) Thresholds() models.Thresholds {
	return m.thresholds
}

// Check evaluates wind against the alert thresholds and notifies every
// subscriber. It returns the issued warning, or nil when nothing was issued.
func (m *Manager) Check(ctx context.Context, wind models.WindData, location models.GeoLocation, colID string) *models.WindWarning {
	m.mu.RLock()
	subs := make([]*subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.RUnlock()

	if len(subs) == 0 {
		return nil
	}

	level := safety.ClassifyWind(wind.Speed, wind.Gust, m.thresholds)
	if level == "" {
		return nil
	}

	now := m.now()
	warning := models.WindWarning{
		Level:     models.WarningLevel(level),
		Message:   warningMessage(level, wind, location, colID),
		Speed:     wind.Speed,
		Gust:      wind.Gust,
		ColID:     colID,
		Location:  location,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(WarningLifetime).UnixMilli(),
	}

	for i, sub := range subs {
		m.notify(ctx, i, sub, warning)
	}

	return &warning
}

func (m *Manager) notify(ctx context.Context, index int, sub *subscriber, warning models.WindWarning) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("warning callback panicked", "subscriber", index, "panic", r)
		}
	}()

	if err := sub.cb(ctx, warning); err != nil {
		m.logger.Error("warning callback failed", "subscriber", index, "error", err)
	}
}

func warningMessage(level models.SafetyLevel, wind models.WindData, location models.GeoLocation, colID string) string {
	place := location.Name
	if colID != "" {
		place = colID
	}
	if place == "" {
		place = fmt.Sprintf("%.2f,%.2f", location.Lat, location.Lon)
	}

	if level == models.SafetyLevelDanger {
		return fmt.Sprintf("Vent dangereux à %s : %.0f km/h, rafales à %.0f km/h", place, wind.Speed, wind.Gust)
	}
	return fmt.Sprintf("Vent fort à %s : %.0f km/h, rafales à %.0f km/h", place, wind.Speed, wind.Gust)
}
