// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/mrcode/glucose-widget/internal/units"
)

const configRelPath = "glucose-widget/settings.json"

// Thresholds are blood glucose limits used to colour the panel
type Thresholds struct {
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	TargetTop    float64 `json:"targetTop"`
	TargetBottom float64 `json:"targetBottom"`
}

// Convert returns the thresholds in mmol/L (toMmol) or mg/dL
func (t Thresholds) Convert(toMmol bool) Thresholds {
	return Thresholds{
		High:         units.Convert(t.High, toMmol),
		Low:          units.Convert(t.Low, toMmol),
		TargetTop:    units.Convert(t.TargetTop, toMmol),
		TargetBottom: units.Convert(t.TargetBottom, toMmol),
	}
}

// Settings contains all application settings
type Settings struct {
	mu sync.RWMutex `json:"-"`

	// Connection settings
	CurrentURL      string `json:"currentUrl"`      // Single newest measurement
	GraphURL        string `json:"graphUrl"`        // Recent measurement window
	RefreshInterval int    `json:"refreshInterval"` // Seconds
	RequestTimeout  int    `json:"requestTimeout"`  // Seconds

	// Display settings
	UnitsInMmol bool `json:"unitsInMmol"`
	CalcTrend   bool `json:"calcTrend"`
	ShowAge     bool `json:"showAge"`
	AgeLimit    int  `json:"ageLimit"` // Minutes before the panel freezes, 0 = never

	// History settings
	HistoryCapacity   int `json:"historyCapacity"`
	StaleAfterMinutes int `json:"staleAfterMinutes"`

	// Glucose thresholds, always mg/dL
	BG Thresholds `json:"bg"`

	// Alert settings
	RetryLimit         int  `json:"retryLimit"` // Consecutive failures before the panel freezes
	EnableAlerts       bool `json:"enableAlerts"`
	RepeatAlertMinutes int  `json:"repeatAlertMinutes"` // 0 = no repeat

	// Runtime
	MetricsAddr string `json:"metricsAddr"` // Empty disables the metrics endpoint
	LogLevel    string `json:"logLevel"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		RefreshInterval: 60,
		RequestTimeout:  10,

		UnitsInMmol: false,
		CalcTrend:   false,
		ShowAge:     true,
		AgeLimit:    15,

		HistoryCapacity:   10,
		StaleAfterMinutes: 60,

		BG: Thresholds{
			High:         250,
			Low:          55,
			TargetTop:    180,
			TargetBottom: 70,
		},

		RetryLimit:         5,
		EnableAlerts:       true,
		RepeatAlertMinutes: 15,

		LogLevel: "info",
	}
}

// GetConfigPath returns the full path to the config file, creating its directory
func GetConfigPath() (string, error) {
	return xdg.ConfigFile(configRelPath)
}

// Load loads settings from the default location
func (s *Settings) Load() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.LoadFrom(path)
}

// LoadFrom loads settings from path, keeping defaults when the file is missing
func (s *Settings) LoadFrom(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // Config path is controlled by the app or the operator
	if err != nil {
		if os.IsNotExist(err) {
			s.copySettingsFields(DefaultSettings())
			return nil
		}
		return err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return err
	}
	s.applyDefaults()

	return nil
}

// Save saves settings to the default location
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return s.SaveTo(path)
}

// SaveTo saves settings to path
func (s *Settings) SaveTo(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// applyDefaults replaces zero or out-of-range values with defaults.
// The caller must hold the write lock.
func (s *Settings) applyDefaults() {
	d := DefaultSettings()
	if s.RefreshInterval < 5 {
		s.RefreshInterval = d.RefreshInterval
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = d.RequestTimeout
	}
	if s.HistoryCapacity < 2 {
		s.HistoryCapacity = d.HistoryCapacity
	}
	if s.StaleAfterMinutes <= 0 {
		s.StaleAfterMinutes = d.StaleAfterMinutes
	}
	if s.RetryLimit <= 0 {
		s.RetryLimit = d.RetryLimit
	}
	if s.BG == (Thresholds{}) {
		s.BG = d.BG
	}
	if s.LogLevel == "" {
		s.LogLevel = d.LogLevel
	}
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Settings{}
	clone.copySettingsFields(s)
	return clone
}

// Update updates settings from another Settings object
func (s *Settings) Update(other *Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	s.copySettingsFields(other)
	s.applyDefaults()
}

// copySettingsFields copies all fields from other to s, excluding the mutex
// The caller must hold the necessary locks on s and other (if other is shared)
func (s *Settings) copySettingsFields(other *Settings) {
	s.CurrentURL = other.CurrentURL
	s.GraphURL = other.GraphURL
	s.RefreshInterval = other.RefreshInterval
	s.RequestTimeout = other.RequestTimeout
	s.UnitsInMmol = other.UnitsInMmol
	s.CalcTrend = other.CalcTrend
	s.ShowAge = other.ShowAge
	s.AgeLimit = other.AgeLimit
	s.HistoryCapacity = other.HistoryCapacity
	s.StaleAfterMinutes = other.StaleAfterMinutes
	s.BG = other.BG
	s.RetryLimit = other.RetryLimit
	s.EnableAlerts = other.EnableAlerts
	s.RepeatAlertMinutes = other.RepeatAlertMinutes
	s.MetricsAddr = other.MetricsAddr
	s.LogLevel = other.LogLevel
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.CurrentURL != "" && s.GraphURL != ""
}

// Interval returns the polling interval
func (s *Settings) Interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RefreshInterval) * time.Second
}

// Timeout returns the per-request timeout
func (s *Settings) Timeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.RequestTimeout) * time.Second
}

// StaleAfter returns the history age that forces a refill
func (s *Settings) StaleAfter() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Duration(s.StaleAfterMinutes) * time.Minute
}

// DisplayThresholds returns the BG thresholds in the display unit
func (s *Settings) DisplayThresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.UnitsInMmol {
		return s.BG.Convert(true)
	}
	return s.BG
}

// PanelState returns the panel state for a glucose value and reading age
func (s *Settings) PanelState(mgdl float64, ageMinutes int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch {
	case s.AgeLimit != 0 && ageMinutes > s.AgeLimit:
		return StateFrozen
	case mgdl >= s.BG.High || mgdl <= s.BG.Low:
		return StateCritical
	case mgdl >= s.BG.TargetTop || mgdl <= s.BG.TargetBottom:
		return StateWarning
	default:
		return StateOK
	}
}
