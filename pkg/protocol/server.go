package protocol

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Invoker applies one invocation request.
type Invoker interface {
	Invoke(ctx context.Context, req *InvocationRequest) (*InvocationResult, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req *InvocationRequest) (*InvocationResult, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req *InvocationRequest) (*InvocationResult, error) {
	return f(ctx, req)
}

// Server answers INVOKE messages read from a stream.
type Server struct {
	invoker Invoker
	ready   ReadyMessage
	logger  zerolog.Logger
}

// NewServer creates a server. A zero ready message gets the process id.
func NewServer(invoker Invoker, ready ReadyMessage, logger zerolog.Logger) *Server {
	if ready.PID == 0 {
		ready.PID = os.Getpid()
	}
	return &Server{
		invoker: invoker,
		ready:   ready,
		logger:  logger.With().Str("component", "protocol").Logger(),
	}
}

// Serve sends READY, then handles messages from r until r ends, ctx is
// done or the stream breaks, and finally sends EXIT. Malformed lines and
// rejected invocations are answered with ERROR and do not stop the loop.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) (*ExitMessage, error) {
	enc := NewEncoder(w)
	dec := NewDecoder(r)

	if err := enc.EncodeReady(&s.ready); err != nil {
		return nil, err
	}
	s.logger.Debug().Int("handlers", len(s.ready.Handlers)).Msg("ready")

	exit := &ExitMessage{Reason: "completed"}
	var loopErr error
	for {
		if ctx.Err() != nil {
			exit.Reason = "cancelled"
			break
		}

		req, err := dec.DecodeInvoke()
		if errors.Is(err, io.EOF) {
			exit.Reason = "stdin_closed"
			break
		}
		if err != nil && !IsMalformed(err) {
			exit.Reason = "error"
			exit.ExitCode = 1
			loopErr = err
			break
		}
		if err != nil {
			exit.Rejected++
			id := ""
			if req != nil {
				id = req.ID
			}
			s.logger.Warn().Err(err).Str("request_id", id).Msg("malformed message")
			if werr := enc.EncodeError(NewErrorMessage(id, err)); werr != nil {
				return nil, werr
			}
			continue
		}

		exit.Invocations++
		result, err := s.invoker.Invoke(ctx, req)
		if err != nil {
			exit.Rejected++
			if werr := enc.EncodeError(NewErrorMessage(req.ID, err)); werr != nil {
				return nil, werr
			}
			continue
		}
		result.ID = req.ID
		if err := enc.EncodeResult(result); err != nil {
			return nil, err
		}
	}

	s.logger.Debug().
		Str("reason", exit.Reason).
		Int("invocations", exit.Invocations).
		Int("rejected", exit.Rejected).
		Msg("exit")
	if err := enc.EncodeExit(exit); err != nil {
		return nil, err
	}
	return exit, loopErr
}
