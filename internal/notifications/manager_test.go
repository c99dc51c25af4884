package notifications

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/glucose-widget/internal/models"
)

type sentNotification struct {
	title, message string
}

func newTestManager(settings *models.Settings) (*Manager, *[]sentNotification) {
	var sent []sentNotification
	manager := NewManager(settings)
	manager.notify = func(title, message, _ string) error {
		sent = append(sent, sentNotification{title, message})
		return nil
	}
	return manager, &sent
}

func TestManager_shouldAlert(t *testing.T) {
	settings := models.DefaultSettings()
	manager := NewManager(settings)

	tests := []struct {
		name     string
		state    string
		mgdl     float64
		expected string
	}{
		{"Critical low", models.StateCritical, 50, alertCriticalLow},
		{"Critical high", models.StateCritical, 300, alertCriticalHigh},
		{"Warning", models.StateWarning, 190, ""},
		{"OK", models.StateOK, 120, ""},
		{"Frozen", models.StateFrozen, 40, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := manager.shouldAlert(tt.state, tt.mgdl); result != tt.expected {
				t.Errorf("shouldAlert() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestManager_shouldAlert_Disabled(t *testing.T) {
	settings := models.DefaultSettings()
	settings.EnableAlerts = false
	manager := NewManager(settings)

	if result := manager.shouldAlert(models.StateCritical, 40); result != "" {
		t.Errorf("shouldAlert() = %s, want empty (disabled)", result)
	}
}

func TestManager_CheckAndNotify_Repeat(t *testing.T) {
	settings := models.DefaultSettings()
	manager, sent := newTestManager(settings)

	now := time.Now()
	manager.now = func() time.Time { return now }
	record := models.DisplayRecord{Last: "45", Delta: "-5", Trend: models.DirectionSingleDown}

	for i := 0; i < 3; i++ {
		if err := manager.CheckAndNotify(record, models.StateCritical, 45); err != nil {
			t.Fatalf("CheckAndNotify() error = %v", err)
		}
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d notifications, want 1 within the repeat window", len(*sent))
	}

	now = now.Add(16 * time.Minute)
	_ = manager.CheckAndNotify(record, models.StateCritical, 45)
	if len(*sent) != 2 {
		t.Errorf("sent %d notifications, want 2 after the repeat window", len(*sent))
	}

	_ = manager.CheckAndNotify(record, models.StateOK, 100)
	_ = manager.CheckAndNotify(record, models.StateCritical, 45)
	if len(*sent) != 3 {
		t.Errorf("sent %d notifications, want 3 after returning in range", len(*sent))
	}
}

func TestManager_formatNotification(t *testing.T) {
	settings := models.DefaultSettings()
	manager := NewManager(settings)
	record := models.DisplayRecord{Last: "45", Delta: "-5", Trend: models.DirectionSingleDown}

	title, message := manager.formatNotification(record, alertCriticalLow)
	if title != "⚠️ LOW GLUCOSE" {
		t.Errorf("title = %s, want ⚠️ LOW GLUCOSE", title)
	}
	if !strings.Contains(message, "45 mg/dL ↓") {
		t.Errorf("message = %s, want value, unit and arrow", message)
	}

	title, _ = manager.formatNotification(record, alertCriticalHigh)
	if title != "⚠️ HIGH GLUCOSE" {
		t.Errorf("title = %s, want ⚠️ HIGH GLUCOSE", title)
	}
}

func TestManager_formatNotification_MmolL(t *testing.T) {
	settings := models.DefaultSettings()
	settings.UnitsInMmol = true
	manager := NewManager(settings)

	_, message := manager.formatNotification(models.DisplayRecord{Last: "2.5"}, alertCriticalLow)
	if !strings.Contains(message, "2.5 mmol/L") {
		t.Errorf("Message should contain mmol/L value, got: %s", message)
	}
}

func TestManager_NotifyConnectionLost(t *testing.T) {
	manager, sent := newTestManager(models.DefaultSettings())

	_ = manager.NotifyConnectionLost("server down")
	_ = manager.NotifyConnectionLost("server down")
	if len(*sent) != 1 {
		t.Fatalf("sent %d notifications, want 1 per outage", len(*sent))
	}

	manager.ConnectionRestored()
	_ = manager.NotifyConnectionLost("server down again")
	if len(*sent) != 2 {
		t.Errorf("sent %d notifications, want 2 after restore", len(*sent))
	}
}

func TestManager_NotifyError(t *testing.T) {
	manager := NewManager(models.DefaultSettings())
	manager.notify = func(string, string, string) error { return errors.New("no daemon") }

	if err := manager.NotifyConnectionLost("x"); err == nil {
		t.Error("expected notifier error")
	}
	if _, ok := manager.lastAlertTime[alertConnection]; ok {
		t.Error("failed notification should not be recorded")
	}
}

func TestManager_ClearAlertState(t *testing.T) {
	manager := NewManager(models.DefaultSettings())

	manager.lastAlertTime[alertCriticalLow] = time.Now()
	manager.lastAlertTime[alertCriticalHigh] = time.Now()

	manager.ClearAlertState(alertCriticalLow)
	if _, ok := manager.lastAlertTime[alertCriticalLow]; ok {
		t.Error("low alert should be cleared")
	}
	if _, ok := manager.lastAlertTime[alertCriticalHigh]; !ok {
		t.Error("high alert should still exist")
	}

	manager.ClearAlertState("")
	if len(manager.lastAlertTime) != 0 {
		t.Error("All alerts should be cleared")
	}
}

func TestManager_UpdateSettings(t *testing.T) {
	manager := NewManager(models.DefaultSettings())

	newSettings := models.DefaultSettings()
	newSettings.UnitsInMmol = true
	manager.UpdateSettings(newSettings)

	if !manager.settings.UnitsInMmol {
		t.Error("Settings were not updated")
	}
}
