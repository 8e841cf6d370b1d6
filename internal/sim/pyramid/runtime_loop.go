package pyramid

import (
	"context"
	"time"
)

func (nw *Network) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(nw.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-nw.stop:
			return nil
		case req := <-nw.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-nw.attach:
			nw.handleAttach(req)
		case id := <-nw.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-nw.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			nw.stepInternal(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (nw *Network) Stop() { close(nw.stop) }

// StepOnce advances the network by a single tick using the same ordering
// semantics as the server loop. Intended for deterministic replays/tests.
func (nw *Network) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = nw.tick.Load()
	nw.stepInternal(joins, leaves, actions)
	return tick, nw.stateDigest(tick)
}

func (nw *Network) handleLeave(nodeID string) {
	delete(nw.clients, nodeID)
}
