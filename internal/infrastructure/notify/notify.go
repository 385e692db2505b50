// Package notify raises desktop notifications, used by the headless host to
// surface a fatal startup error when no window is available.
package notify

import (
	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// Notifier shows a message to the desktop user.
type Notifier interface {
	Notify(title, message string) error
	Alert(title, message string) error
}

// Desktop delivers notifications through the OS notification service.
type Desktop struct{}

// NewDesktop sets the application name shown by the notification service.
func NewDesktop(appName string) Desktop {
	if appName != "" {
		beeep.AppName = appName
	}
	return Desktop{}
}

// Notify shows an informational notification.
func (Desktop) Notify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Alert shows a notification with a sound.
func (Desktop) Alert(title, message string) error {
	return beeep.Alert(title, message, "")
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) error { return nil }
func (Nop) Alert(string, string) error  { return nil }

// Logged wraps a Notifier so delivery failures are logged instead of returned.
type Logged struct {
	Notifier Notifier
	Logger   *zap.Logger
}

// Notify delivers and logs failures.
func (l Logged) Notify(title, message string) error {
	if err := l.Notifier.Notify(title, message); err != nil {
		l.Logger.Debug("Notification not delivered", zap.String("title", title), zap.Error(err))
	}
	return nil
}

// Alert delivers and logs failures.
func (l Logged) Alert(title, message string) error {
	if err := l.Notifier.Alert(title, message); err != nil {
		l.Logger.Debug("Alert not delivered", zap.String("title", title), zap.Error(err))
	}
	return nil
}
