// Package notification delivers signal alerts to external channels
// (Telegram, webhooks, the log).
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"intraday-scanner/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Signal  *model.Signal `json:"signal,omitempty"`
}

// SignalAlert formats a BUY signal for humans.
func SignalAlert(sig model.Signal) Alert {
	s := sig
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s %s @ %.2f", sig.Direction, sig.Symbol, sig.Price),
		Message: fmt.Sprintf("Entry %.2f - %.2f\nStop %.2f\nTarget %.2f\nConfidence %.0f\n%s",
			sig.EntryLow, sig.EntryHigh, sig.StopLoss, sig.Target, sig.Confidence, sig.Reason),
		Signal: &s,
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Name labels the backend in logs and metrics.
	Name() string

	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the structured log. It is always enabled.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	slog.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi fans an alert out to every backend. One failing backend does not
// stop delivery to the others; their errors are joined.
type Multi struct {
	notifiers []Notifier
	onSent    func(name string, err error)
}

// NewMulti combines notifiers. onSent, when non-nil, is called after each
// delivery attempt (used for metrics).
func NewMulti(onSent func(name string, err error), notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, onSent: onSent}
}

func (m *Multi) Name() string { return "multi" }

// Len is the number of backends.
func (m *Multi) Len() int { return len(m.notifiers) }

func (m *Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.Send(ctx, alert)
		if m.onSent != nil {
			m.onSent(n.Name(), err)
		}
		if err != nil {
			slog.Warn("alert delivery failed", "notifier", n.Name(), "title", alert.Title, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
