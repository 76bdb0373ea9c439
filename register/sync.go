package register

import (
	"context"
	"fmt"
)

// ReadValue enqueues a single read and waits for its result.
func ReadValue(ctx context.Context, q Queue, address uint32) (uint32, error) {
	var value uint32
	done := make(chan error, 1)

	seq := q.MakeReadCommands([]Read{{
		Address:    address,
		Completion: func(rsp Response) { value = rsp.Value },
	}}, func(_ Command, err error) { done <- err })

	if err := seq.EnqueueTo(q); err != nil {
		return 0, err
	}

	if err := wait(ctx, q, done); err != nil {
		return 0, err
	}
	return value, nil
}

// WriteValue enqueues a single write and waits for it to complete.
func WriteValue(ctx context.Context, q Queue, address uint32, value uint32) error {
	done := make(chan error, 1)

	seq := q.MakeWriteCommands([]Write{{
		Address: address,
		Value:   value,
	}}, func(_ Command, err error) { done <- err })

	if err := seq.EnqueueTo(q); err != nil {
		return err
	}

	return wait(ctx, q, done)
}

func wait(ctx context.Context, q Queue, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.Closed():
		// the command may have completed just before the close:
		select {
		case err := <-done:
			return err
		default:
			return fmt.Errorf("wait: %w", ErrClosed)
		}
	}
}
