package notify

import (
	"context"
	"errors"
)

// Multi fans a message out to every configured transport. One transport
// failing does not stop the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errlist []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}
