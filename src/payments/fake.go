package payments

import (
	"context"
	"fmt"
	"spruce/src/faults"
	"sync"
)

// FakeGateway counts calls and can be scripted to fail a given
// primitive, so tests can assert compensation behaviour without a
// network.
type FakeGateway struct {
	mu sync.Mutex

	Holds     int
	Confirms  int
	Captures  int
	Cancels   int
	Refunds   int
	Transfers int

	// FailOn makes the named primitive return an error.
	FailOn map[string]bool

	LastRefundAmount int64
	LastRefundReason string

	seq int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{FailOn: map[string]bool{}}
}

func (g *FakeGateway) fail(op string) error {
	if g.FailOn[op] {
		return faults.ExternalServiceError{Service: "fake", Err: fmt.Errorf("%s declined", op)}
	}
	return nil
}

func (g *FakeGateway) CreateHold(ctx context.Context, req HoldRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("hold"); err != nil {
		return "", err
	}
	g.Holds++
	g.seq++
	return fmt.Sprintf("pi_fake_%d", g.seq), nil
}

func (g *FakeGateway) Confirm(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("confirm"); err != nil {
		return err
	}
	g.Confirms++
	return nil
}

func (g *FakeGateway) Capture(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("capture"); err != nil {
		return err
	}
	g.Captures++
	return nil
}

func (g *FakeGateway) Cancel(ctx context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("cancel"); err != nil {
		return err
	}
	g.Cancels++
	return nil
}

func (g *FakeGateway) Refund(ctx context.Context, intentID string, amount int64, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("refund"); err != nil {
		return err
	}
	g.Refunds++
	g.LastRefundAmount = amount
	g.LastRefundReason = reason
	return nil
}

func (g *FakeGateway) Transfer(ctx context.Context, destination string, amount int64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("transfer"); err != nil {
		return "", err
	}
	g.Transfers++
	g.seq++
	return fmt.Sprintf("tr_fake_%d", g.seq), nil
}
