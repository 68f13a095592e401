package notify

import (
	"context"
	"strings"

	"go.uber.org/multierr"
)

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Multi fans a message out to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, title, text string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, title, text))
	}
	return err
}

// Enabled reports whether at least one notifier is configured.
func (m Multi) Enabled() bool {
	for _, n := range m {
		if n != nil {
			return true
		}
	}
	return false
}

// Lines joins summary lines into a preformatted block.
func Lines(lines []string) string {
	return "```\n" + strings.Join(lines, "\n") + "\n```"
}
