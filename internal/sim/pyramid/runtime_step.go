package pyramid

import (
	"encoding/json"
	"time"
)

func (nw *Network) stepInternal(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	started := time.Now()
	nowTick := nw.tick.Load()

	// Apply leaves and joins deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := nw.clients[id]; ok {
			nw.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := nw.joinMember(req.Name, req.Controller, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{
			NodeID:     resp.Welcome.NodeID,
			Name:       req.Name,
			Controller: string(req.Controller),
		})
	}

	// Apply actions in server-receive order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		n := nw.nodes[env.NodeID]
		if n == nil {
			continue
		}
		env.Act.NodeID = env.NodeID // trust session identity
		recorded = append(recorded, RecordedAction{NodeID: env.NodeID, Act: env.Act})
		nw.applyAct(n, env.Act, nowTick)
	}

	// Build + send OBS for each connected session.
	for id, cl := range nw.clients {
		n := nw.nodes[id]
		if n == nil {
			continue
		}
		obs := nw.buildObs(n, nowTick)
		b, err := json.Marshal(obs)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}

	digest := nw.stateDigest(nowTick)
	if nw.tickLogger != nil {
		_ = nw.tickLogger.WriteTick(TickLogEntry{
			Tick:    nowTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Digest:  digest,
		})
	}

	// Snapshot every N ticks, starting after tick 0.
	if nw.snapshotSink != nil && nowTick != 0 && nw.cfg.SnapshotEveryTicks > 0 {
		every := uint64(nw.cfg.SnapshotEveryTicks)
		if nowTick%every == 0 {
			snap := nw.ExportSnapshot(nowTick)
			select {
			case nw.snapshotSink <- snap:
			default:
				// Drop snapshot if the sink is backed up.
			}
		}
	}

	nw.metricNodes.Store(int64(len(nw.nodes)))
	nw.metricClients.Store(int64(len(nw.clients)))
	nw.metricStepNanos.Store(int64(time.Since(started)))

	nw.tick.Add(1)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
