package pyramid

import "pyramid.gg/internal/protocol"

func (nw *Network) applyAct(n *Node, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		n.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrStale, "act tick out of range"))
		return
	}
	for _, intent := range act.Intents {
		nw.applyIntent(n, intent, nowTick)
	}
}

func (nw *Network) applyIntent(n *Node, intent protocol.IntentReq, nowTick uint64) {
	if h := intentDispatch[intent.Type]; h != nil {
		h(nw, n, intent, nowTick)
		return
	}
	n.AddEvent(actionResult(nowTick, intent.ID, false, protocol.ErrBadRequest, "unknown intent type"))
}

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
		if message == "" {
			message = "unknown error code"
		}
	}
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
