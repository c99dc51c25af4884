package tray

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"

	"github.com/mrcode/glucose-widget/internal/app"
)

// ErrNotAttached is returned when rendering before the tray exists
var ErrNotAttached = errors.New("tray not attached")

// Sink renders views onto a wails system tray and forwards them to the frontend
type Sink struct {
	panel *Panel

	mu    sync.RWMutex
	wails *application.App
	tray  *application.SystemTray
}

// NewSink creates a tray sink; it renders once Attach is called
func NewSink(panel *Panel) *Sink {
	return &Sink{panel: panel}
}

// Attach binds the sink to a running application and its tray
func (s *Sink) Attach(wails *application.App, tray *application.SystemTray) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wails = wails
	s.tray = tray
}

// Render updates the tray label and icon and emits the frontend events
func (s *Sink) Render(_ context.Context, view app.View) error {
	s.mu.RLock()
	wails, tray := s.wails, s.tray
	s.mu.RUnlock()

	if wails == nil || tray == nil {
		return ErrNotAttached
	}

	icon, err := s.panel.Encode(view)
	if err != nil {
		return fmt.Errorf("rendering panel: %w", err)
	}

	tray.SetLabel(Label(view))
	tray.SetIcon(icon)

	wails.Event.Emit(app.EventUpdate, view)
	if view.Error != "" {
		wails.Event.Emit(app.EventError, view.Error)
	}
	return nil
}
