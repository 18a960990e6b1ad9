package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/darrayctl/internal/logging"
	"github.com/danmuck/darrayctl/internal/observability"
	"github.com/danmuck/darrayctl/internal/protocol"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 15 * time.Second

// Config addresses one coordinator. Timeout bounds the whole exchange, dial
// included; zero leaves only the caller's context in charge.
type Config struct {
	Host          string
	Port          int
	Timeout       time.Duration
	MaxReplyBytes int
}

func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		MaxReplyBytes: protocol.DefaultMaxLineBytes,
	}
}

func (c Config) Address() string {
	return net.JoinHostPort(strings.TrimSpace(c.Host), strconv.Itoa(c.Port))
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Host) == "" || c.Port <= 0 || c.Port > 65535 {
		return ErrAddressRequired
	}
	if c.Timeout < 0 {
		return errors.New("transport: timeout must be >= 0")
	}
	return nil
}

// Client sends envelopes to one coordinator. It holds no connection and is
// safe for concurrent use.
type Client struct {
	cfg    Config
	addr   string
	logger zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxReplyBytes == 0 {
		cfg.MaxReplyBytes = protocol.DefaultMaxLineBytes
	}
	return &Client{
		cfg:    cfg,
		addr:   cfg.Address(),
		logger: logging.Component("transport"),
	}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

// Send performs one exchange with the package defaults for reply size.
func Send(ctx context.Context, env protocol.Envelope, host string, port int, timeout time.Duration) (string, error) {
	cfg := DefaultConfig()
	cfg.Host = host
	cfg.Port = port
	cfg.Timeout = timeout
	c, err := NewClient(cfg)
	if err != nil {
		return "", err
	}
	return c.Send(ctx, env)
}

// Send dials, writes env as one line, and returns the first reply line with
// surrounding whitespace removed. The reply is not interpreted.
func (c *Client) Send(ctx context.Context, env protocol.Envelope) (reply string, err error) {
	line, err := protocol.Encode(env)
	if err != nil {
		return "", err
	}
	line = append(line, '\n')

	start := time.Now()
	defer func() {
		outcome := Outcome(err)
		observability.RecordTransport(env.Kind().String(), outcome, time.Since(start))
		event := c.logger.Debug()
		if err != nil {
			event = c.logger.Warn().Err(err)
		}
		event.
			Str("kind", env.Kind().String()).
			Str("addr", c.addr).
			Str("outcome", outcome).
			Dur("duration", time.Since(start)).
			Msg("exchange")
	}()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return "", classify(ctx, OpDial, c.addr, ErrConnect, err)
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblocks a pending read or write when ctx ends before the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if _, err := conn.Write(line); err != nil {
		return "", classify(ctx, OpWrite, c.addr, ErrWrite, err)
	}

	raw, err := protocol.ReadLine(bufio.NewReader(conn), c.cfg.MaxReplyBytes)
	if err != nil {
		if errors.Is(err, protocol.ErrLineTooLarge) {
			return "", &Error{Op: OpRead, Addr: c.addr, Kind: ErrReplyTooLarge, Err: err}
		}
		return "", classify(ctx, OpRead, c.addr, ErrConnectionClosed, err)
	}
	return strings.TrimSpace(string(raw)), nil
}
