// Package visibility reports when the user returns to the desktop, so the
// widget can refresh immediately instead of waiting for the next tick
package visibility

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

const (
	screenSaverInterface = "org.freedesktop.ScreenSaver"
	activeChangedMember  = "ActiveChanged"
)

// Watcher listens for screen saver deactivation on the session bus
type Watcher struct {
	logger *slog.Logger
	conn   *dbus.Conn
}

// NewWatcher connects to the session bus
func NewWatcher(logger *slog.Logger) (*Watcher, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting session bus: %w", err)
	}
	return &Watcher{logger: logger, conn: conn}, nil
}

// Watch emits on the returned channel every time the screen becomes visible
// again. The channel is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	if err := w.conn.AddMatchSignal(
		dbus.WithMatchInterface(screenSaverInterface),
		dbus.WithMatchMember(activeChangedMember),
	); err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", screenSaverInterface, err)
	}

	signals := make(chan *dbus.Signal, 8)
	w.conn.Signal(signals)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.conn.RemoveSignal(signals)

		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if !Regained(sig) {
					continue
				}
				w.logger.Debug("screen visible again")
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	return out, nil
}

// Close releases the bus connection
func (w *Watcher) Close() error {
	return w.conn.Close()
}

// Regained reports whether sig announces that the screen saver was dismissed
func Regained(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != screenSaverInterface+"."+activeChangedMember || len(sig.Body) == 0 {
		return false
	}
	active, ok := sig.Body[0].(bool)
	return ok && !active
}
