package network

import (
	"context"
	"errors"
	"fmt"

	"invoice-pay/pkg/logger"
)

// ErrSwitchFailed is returned when the wallet could not be moved to the target chain
var ErrSwitchFailed = errors.New("network switch failed")

// Connector is the wallet side of network selection
type Connector interface {
	ActiveChain(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
}

// Coordinator keeps the wallet on the chain a payment needs
type Coordinator struct {
	connector    Connector
	logger       logger.Logger
	beforeSwitch func(target int64)
}

// NewCoordinator creates a coordinator over a wallet connector
func NewCoordinator(connector Connector, log logger.Logger) *Coordinator {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Coordinator{connector: connector, logger: log}
}

// OnSwitch registers a callback run right before a switch is requested
func (c *Coordinator) OnSwitch(fn func(target int64)) {
	c.beforeSwitch = fn
}

// Switched reports whether EnsureChain had to ask for a switch
type Switched bool

// EnsureChain returns immediately when the wallet is already on the target chain.
// Otherwise it asks the connector to switch and blocks until it answers.
func (c *Coordinator) EnsureChain(ctx context.Context, target int64) (Switched, error) {
	active, err := c.connector.ActiveChain(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: failed to read active chain: %v", ErrSwitchFailed, err)
	}

	if active == target {
		return false, nil
	}

	c.logger.Info("switching network", map[string]any{
		"from": Name(active),
		"to":   Name(target),
	})

	if c.beforeSwitch != nil {
		c.beforeSwitch(target)
	}

	if err := c.connector.SwitchChain(ctx, target); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrSwitchFailed, Name(target), err)
	}

	return true, nil
}
