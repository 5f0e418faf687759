package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/goto/salt/log"

	v1 "github.com/catalystcommunity/wsprobe/v1"
)

// DefaultDialTimeout bounds connecting and sending when no option overrides it.
const DefaultDialTimeout = 5 * time.Second

// Prober runs probes. A Prober holds no per-probe state and is safe for
// concurrent use; every probe owns its connection.
type Prober struct {
	dialer      *v1.Dialer
	dialTimeout time.Duration
	logger      log.Logger
}

type Option func(*Prober)

func WithLogger(logger log.Logger) Option {
	return func(p *Prober) {
		p.logger = logger
	}
}

// WithDialTimeout bounds the connect step and the send step. Zero disables the bound.
func WithDialTimeout(d time.Duration) Option {
	return func(p *Prober) {
		p.dialTimeout = d
	}
}

func WithDialer(d *v1.Dialer) Option {
	return func(p *Prober) {
		p.dialer = d
	}
}

func New(opts ...Option) *Prober {
	p := &Prober{
		dialer:      &v1.Dialer{},
		dialTimeout: DefaultDialTimeout,
		logger:      log.NewNoop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe runs one probe with a default Prober.
func Probe(ctx context.Context, endpoint string, msg Message, timeout time.Duration) Result {
	return New().Probe(ctx, endpoint, msg, timeout)
}

// Probe connects to endpoint, sends msg as one text message, waits for one
// message back and classifies it. A timeout <= 0 waits without bound.
//
// The connection is closed on every return path. Cancelling ctx aborts the
// probe with a TransportError.
func (p *Prober) Probe(ctx context.Context, endpoint string, msg Message, timeout time.Duration) Result {
	id := uuid.NewString()

	p.logger.Info("connecting", "probe_id", id, "endpoint", endpoint)
	conn, err := p.connect(ctx, endpoint)
	if err != nil {
		p.logger.Error("connect failed", "probe_id", id, "endpoint", endpoint, "err", err)
		return TransportError{Op: OpConnect, Err: err}
	}
	defer func() {
		if err := conn.Close(); err != nil {
			p.logger.Debug("close connection", "probe_id", id, "err", err)
		}
	}()
	p.logger.Info("connected", "probe_id", id, "endpoint", endpoint)

	payload, err := msg.encode()
	if err != nil {
		return TransportError{Op: OpSend, Err: err}
	}
	if err := p.send(conn, payload); err != nil {
		p.logger.Error("send failed", "probe_id", id, "err", err)
		return TransportError{Op: OpSend, Err: err}
	}
	p.logger.Info("message sent, waiting for response", "probe_id", id, "payload", string(payload))

	raw, err := receive(ctx, conn, timeout)
	if err != nil {
		if ctx.Err() == nil && isTimeout(err) {
			p.logger.Warn("timeout waiting for response", "probe_id", id, "timeout", timeout.String())
			return Timeout{After: timeout}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		p.logger.Error("receive failed", "probe_id", id, "err", err)
		return TransportError{Op: OpReceive, Err: err}
	}
	p.logger.Info("response received", "probe_id", id, "raw", raw)

	result := Classify(raw, msg)
	p.logger.Info("response classified", "probe_id", id, "outcome", result.Kind().String())
	return result
}

func (p *Prober) connect(ctx context.Context, endpoint string) (*v1.Conn, error) {
	if p.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}
	return p.dialer.Dial(ctx, endpoint)
}

func (p *Prober) send(conn *v1.Conn, payload []byte) error {
	if p.dialTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(p.dialTimeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	return conn.WriteMessage(v1.TextMessage, payload)
}

func receive(ctx context.Context, conn *v1.Conn, timeout time.Duration) (string, error) {
	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
