package protocol

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client drives a Server over a pair of streams, typically the stdin and
// stdout of a child process.
type Client struct {
	encoder *Encoder
	decoder *Decoder
	in      io.Writer
	ready   *ReadyMessage
	exit    *ExitMessage
	mu      sync.Mutex
	closed  bool
}

// NewClient creates a client writing requests to in and reading replies
// from out.
func NewClient(in io.Writer, out io.Reader) *Client {
	return &Client{
		encoder: NewEncoder(in),
		decoder: NewDecoder(out),
		in:      in,
	}
}

// Start waits for the READY message.
func (c *Client) Start(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	readyCh := make(chan *ReadyMessage, 1)
	errCh := make(chan error, 1)

	go func() {
		msg, err := c.decoder.Decode()
		if err != nil {
			errCh <- err
			return
		}
		if msg.Type != MessageTypeReady {
			errCh <- fmt.Errorf("expected READY, got %s", msg.Type)
			return
		}
		var ready ReadyMessage
		if err := ParseData(msg.Data, &ready); err != nil {
			errCh <- err
			return
		}
		readyCh <- &ready
	}()

	select {
	case <-readyCtx.Done():
		return fmt.Errorf("timeout waiting for READY message")
	case err := <-errCh:
		return fmt.Errorf("failed to receive READY: %w", err)
	case ready := <-readyCh:
		c.mu.Lock()
		c.ready = ready
		c.mu.Unlock()
		return nil
	}
}

// Ready returns the READY message received by Start.
func (c *Client) Ready() *ReadyMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Invoke sends req and waits for its reply. A request without an id gets a
// fresh one. A rejected invocation returns the fault rebuilt from the ERROR
// message.
func (c *Client) Invoke(ctx context.Context, req *InvocationRequest) (*InvocationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	if err := c.encoder.EncodeInvoke(req); err != nil {
		return nil, fmt.Errorf("failed to send invocation: %w", err)
	}

	msg, err := c.decoder.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch msg.Type {
	case MessageTypeResult:
		var result InvocationResult
		if err := ParseData(msg.Data, &result); err != nil {
			return nil, err
		}
		if result.ID != req.ID {
			return nil, fmt.Errorf("request ID mismatch: expected %s, got %s", req.ID, result.ID)
		}
		return &result, nil

	case MessageTypeError:
		var errMsg ErrorMessage
		if err := ParseData(msg.Data, &errMsg); err != nil {
			return nil, err
		}
		if errMsg.ID != "" && errMsg.ID != req.ID {
			return nil, fmt.Errorf("request ID mismatch: expected %s, got %s", req.ID, errMsg.ID)
		}
		return nil, errMsg.Err()

	case MessageTypeExit:
		var exit ExitMessage
		_ = ParseData(msg.Data, &exit)
		c.exit = &exit
		c.closed = true
		return nil, fmt.Errorf("model host exited: %s", exit.Reason)

	default:
		return nil, fmt.Errorf("unexpected message type: %s", msg.Type)
	}
}

// Close closes the request stream, if it is an io.Closer, and waits for
// the EXIT message.
func (c *Client) Close() (*ExitMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return c.exit, nil
	}
	c.closed = true

	if closer, ok := c.in.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close request stream: %w", err)
		}
	}

	for {
		msg, err := c.decoder.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to read EXIT: %w", err)
		}
		if msg.Type != MessageTypeExit {
			continue
		}
		var exit ExitMessage
		if err := ParseData(msg.Data, &exit); err != nil {
			return nil, err
		}
		c.exit = &exit
		return &exit, nil
	}
}
