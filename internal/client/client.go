// Package client issues array commands to a coordinator. Each command is one
// envelope over one transport exchange; the reply comes back as raw text.
package client

import (
	"context"
	"errors"
	"strings"

	"github.com/danmuck/darrayctl/internal/protocol"
	"github.com/danmuck/darrayctl/internal/transport"
)

var (
	ErrArrayIDRequired   = errors.New("client: array id required")
	ErrOperationRequired = errors.New("client: operation required")
)

type Config struct {
	Transport transport.Config
	Sender    string
	Recipient string
}

func DefaultConfig() Config {
	return Config{
		Transport: transport.DefaultConfig(),
		Sender:    protocol.ParticipantClient,
		Recipient: protocol.ParticipantMaster,
	}
}

type Client struct {
	cfg Config
	tx  *transport.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Sender) == "" {
		cfg.Sender = protocol.ParticipantClient
	}
	if strings.TrimSpace(cfg.Recipient) == "" {
		cfg.Recipient = protocol.ParticipantMaster
	}
	tx, err := transport.NewClient(cfg.Transport)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, tx: tx}, nil
}

func (c *Client) Config() Config {
	return c.cfg
}

func (c *Client) CreateIntArray(ctx context.Context, arrayID string, values []int64) (Reply, error) {
	if strings.TrimSpace(arrayID) == "" {
		return Reply{}, ErrArrayIDRequired
	}
	return c.Send(ctx, protocol.NewIntArray(arrayID, values))
}

func (c *Client) CreateDoubleArray(ctx context.Context, arrayID string, values []float64) (Reply, error) {
	if strings.TrimSpace(arrayID) == "" {
		return Reply{}, ErrArrayIDRequired
	}
	return c.Send(ctx, protocol.NewDoubleArray(arrayID, values))
}

func (c *Client) ApplyOperation(ctx context.Context, arrayID, operation string) (Reply, error) {
	if strings.TrimSpace(arrayID) == "" {
		return Reply{}, ErrArrayIDRequired
	}
	if strings.TrimSpace(operation) == "" {
		return Reply{}, ErrOperationRequired
	}
	return c.Send(ctx, protocol.ApplyOperation{ArrayID: arrayID, Operation: operation})
}

func (c *Client) GetResult(ctx context.Context, arrayID string) (Reply, error) {
	if strings.TrimSpace(arrayID) == "" {
		return Reply{}, ErrArrayIDRequired
	}
	return c.Send(ctx, protocol.GetResult{ArrayID: arrayID})
}

// Send wraps p in an envelope addressed from Sender to Recipient and performs
// one exchange.
func (c *Client) Send(ctx context.Context, p protocol.Payload) (Reply, error) {
	env, err := protocol.Build(p.Kind(), c.cfg.Sender, c.cfg.Recipient, p)
	if err != nil {
		return Reply{}, err
	}
	raw, err := c.tx.Send(ctx, env)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Raw: raw}, nil
}
