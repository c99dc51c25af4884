// Package notifications handles system notifications and alerts
package notifications

import (
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/glucose-widget/internal/models"
)

const appTitle = "Glucose Widget"

// Alert kinds
const (
	alertCriticalLow  = "critical_low"
	alertCriticalHigh = "critical_high"
	alertConnection   = "connection"
)

// NotifyFunc delivers a desktop notification
type NotifyFunc func(title, message, appIcon string) error

// Manager handles glucose alerts and notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	notify        NotifyFunc
	now           func() time.Time
	mu            sync.Mutex
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings) *Manager {
	return &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		notify:        beeep.Notify,
		now:           time.Now,
	}
}

// SetNotifier replaces the notification backend
func (m *Manager) SetNotifier(fn NotifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// UpdateSettings updates the settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckAndNotify sends an alert when the panel is in the critical state
func (m *Manager) CheckAndNotify(record models.DisplayRecord, state string, mgdl float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alertType := m.shouldAlert(state, mgdl)
	if alertType == "" {
		// Back in range; the next excursion alerts immediately
		delete(m.lastAlertTime, alertCriticalLow)
		delete(m.lastAlertTime, alertCriticalHigh)
		return nil
	}

	if lastTime, ok := m.lastAlertTime[alertType]; ok {
		if m.settings.RepeatAlertMinutes <= 0 {
			return nil
		}
		repeatDuration := time.Duration(m.settings.RepeatAlertMinutes) * time.Minute
		if m.now().Sub(lastTime) < repeatDuration {
			return nil
		}
	}

	title, message := m.formatNotification(record, alertType)
	if err := m.notify(title, message, ""); err != nil {
		return err
	}

	m.lastAlertTime[alertType] = m.now()
	return nil
}

// shouldAlert determines which alert, if any, the state calls for
func (m *Manager) shouldAlert(state string, mgdl float64) string {
	if !m.settings.EnableAlerts || state != models.StateCritical {
		return ""
	}
	if mgdl <= m.settings.BG.Low {
		return alertCriticalLow
	}
	return alertCriticalHigh
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(record models.DisplayRecord, alertType string) (string, string) {
	unit := "mg/dL"
	if m.settings.UnitsInMmol {
		unit = "mmol/L"
	}
	arrow := models.DirectionGlyph(record.Trend)

	switch alertType {
	case alertCriticalLow:
		return "⚠️ LOW GLUCOSE",
			fmt.Sprintf("Glucose is critically low: %s %s %s (%s)", record.Last, unit, arrow, record.Delta)
	default:
		return "⚠️ HIGH GLUCOSE",
			fmt.Sprintf("Glucose is critically high: %s %s %s (%s)", record.Last, unit, arrow, record.Delta)
	}
}

// NotifyConnectionLost raises one alert per outage
func (m *Manager) NotifyConnectionLost(message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, shown := m.lastAlertTime[alertConnection]; shown {
		return nil
	}
	if err := m.notify("Connection error", message, ""); err != nil {
		return err
	}
	m.lastAlertTime[alertConnection] = m.now()
	return nil
}

// ConnectionRestored re-arms the connection alert
func (m *Manager) ConnectionRestored() {
	m.ClearAlertState(alertConnection)
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.notify(appTitle, "Test notification - alerts are working!", "")
}
