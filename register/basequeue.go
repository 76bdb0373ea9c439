package register

import (
	"fmt"
	"log"
	"sync"
)

const chanSize = 8

// Backend is implemented by each driver's Queue type. The embedded BaseQueue
// runs commands on a single goroutine, so a backend is never called concurrently.
type Backend interface {
	Queue

	ReadRegister(address uint32) (uint32, error)
	WriteRegister(address uint32, value uint32) error

	// CloseBackend releases the underlying connection. Called once, from the queue goroutine.
	CloseBackend() error
}

type BaseQueue struct {
	// driver name
	name string

	// command execution queue:
	cq chan CommandWithCompletion

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error

	// derived Queue struct:
	backend Backend
}

func (b *BaseQueue) BaseInit(name string, backend Backend) {
	if backend == nil {
		panic("backend must not be nil")
	}

	b.name = name
	b.cq = make(chan CommandWithCompletion, chanSize)
	b.closed = make(chan struct{})
	b.backend = backend

	go b.handleQueue()
}

func (b *BaseQueue) Name() string { return b.name }

func (b *BaseQueue) Closed() <-chan struct{} { return b.closed }

func (b *BaseQueue) IsTerminalError(err error) bool { return false }

func (b *BaseQueue) Enqueue(cmd CommandWithCompletion) error {
	select {
	case <-b.closed:
		return fmt.Errorf("%s: %w", b.name, ErrClosed)
	default:
	}

	select {
	case b.cq <- cmd:
		return nil
	case <-b.closed:
		return fmt.Errorf("%s: %w", b.name, ErrClosed)
	}
}

// Close asks the queue goroutine to close the backend after the commands already
// enqueued and waits for it. Closing an already closed queue is a no-op.
func (b *BaseQueue) Close() error {
	if err := b.Enqueue(CommandWithCompletion{Command: &CloseCommand{}}); err != nil {
		return nil
	}
	<-b.closed
	return b.closeErr
}

func (b *BaseQueue) MakeReadCommands(reqs []Read, batchComplete Completion) CommandSequence {
	seq := make(CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, CommandWithCompletion{
			Command:    &ReadCommand{Request: req},
			Completion: batchComplete,
		})
	}
	return seq
}

func (b *BaseQueue) MakeWriteCommands(reqs []Write, batchComplete Completion) CommandSequence {
	seq := make(CommandSequence, 0, len(reqs))
	for _, req := range reqs {
		seq = append(seq, CommandWithCompletion{
			Command:    &WriteCommand{Request: req},
			Completion: batchComplete,
		})
	}
	return seq
}

func (b *BaseQueue) shutdown() {
	b.closeOnce.Do(func() {
		log.Printf("%s: closing\n", b.name)
		b.closeErr = b.backend.CloseBackend()
		if b.closeErr != nil {
			log.Printf("%s: %v\n", b.name, b.closeErr)
		}
		close(b.closed)
	})

	// fail anything still waiting so callers are not left hanging:
	for {
		select {
		case pair := <-b.cq:
			if pair.Completion != nil {
				pair.Completion(pair.Command, fmt.Errorf("%s: %w", b.name, ErrClosed))
			}
		default:
			return
		}
	}
}

func (b *BaseQueue) handleQueue() {
	defer b.shutdown()

	for pair := range b.cq {
		cmd := pair.Command
		if cmd == nil {
			break
		}

		if _, ok := cmd.(*CloseCommand); ok {
			if pair.Completion != nil {
				pair.Completion(cmd, nil)
			}
			return
		}
		if _, ok := cmd.(*DrainQueueCommand); ok {
			b.drain()
		}

		terminal := false
		err := cmd.Execute(b.backend)
		// wrap the error if it is a terminal case:
		if err != nil && b.backend.IsTerminalError(err) {
			err = ErrDeviceDisconnected{err}
			terminal = true
		}
		if pair.Completion != nil {
			pair.Completion(cmd, err)
		} else if err != nil {
			log.Printf("%s: %v\n", b.name, err)
		}

		if terminal {
			return
		}
	}
}

func (b *BaseQueue) drain() {
	n := 0
	for {
		select {
		case pair := <-b.cq:
			n++
			if pair.Completion != nil {
				pair.Completion(pair.Command, fmt.Errorf("%s: %w", b.name, ErrDrained))
			}
		default:
			log.Printf("%s: drained %d commands\n", b.name, n)
			return
		}
	}
}

type ReadCommand struct {
	Request Read
}

func (r *ReadCommand) Execute(queue Queue) error {
	q, ok := queue.(Backend)
	if !ok {
		return fmt.Errorf("queue is not of expected internal type")
	}

	v, err := q.ReadRegister(r.Request.Address)
	if err != nil {
		return err
	}

	if completed := r.Request.Completion; completed != nil {
		completed(Response{
			IsWrite: false,
			Address: r.Request.Address,
			Value:   v,
		})
	}
	return nil
}

type WriteCommand struct {
	Request Write
}

func (w *WriteCommand) Execute(queue Queue) error {
	q, ok := queue.(Backend)
	if !ok {
		return fmt.Errorf("queue is not of expected internal type")
	}

	if err := q.WriteRegister(w.Request.Address, w.Request.Value); err != nil {
		return err
	}

	if completed := w.Request.Completion; completed != nil {
		completed(Response{
			IsWrite: true,
			Address: w.Request.Address,
			Value:   w.Request.Value,
		})
	}
	return nil
}
