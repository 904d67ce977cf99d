package notify

import (
	"context"
	"errors"
	"fmt"

	"PriceWatch/internal/ports"
)

// Fanout delivers each alert to every channel and joins their errors.
type Fanout struct {
	channels []ports.Notifier
}

var _ ports.Notifier = (*Fanout)(nil)

// NewFanout drops nil channels. It returns nil when nothing remains, so callers can
// tell "no channel configured" apart from a delivery failure.
func NewFanout(channels ...ports.Notifier) *Fanout {
	var kept []ports.Notifier
	for _, c := range channels {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Fanout{channels: kept}
}

// SendAlert tries every channel even if an earlier one failed.
func (f *Fanout) SendAlert(ctx context.Context, alert ports.Alert) error {
	var errs []error
	for i, c := range f.channels {
		if err := c.SendAlert(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("channel %d (%T): %w", i, c, err))
		}
	}
	return errors.Join(errs...)
}
