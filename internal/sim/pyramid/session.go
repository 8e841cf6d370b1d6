package pyramid

import (
	"strings"

	"github.com/google/uuid"

	"pyramid.gg/internal/protocol"
)

func (nw *Network) buildWelcome(nodeID, resumeToken string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		NodeID:          nodeID,
		ResumeToken:     resumeToken,
		NetworkParams: protocol.NetworkParams{
			NetworkID:         nw.cfg.ID,
			TickRateHz:        nw.cfg.TickRateHz,
			Seed:              nw.cfg.Seed,
			CoupCooldownTicks: nw.cfg.CoupCooldownTicks,
			InvestCapPermille: nw.cfg.InvestCapPermille,
			PayoutPermille:    nw.cfg.PayoutPermille,
			MaxChildren:       nw.cfg.MaxChildren,
			PromotionRecruits: nw.cfg.PromotionRecruits,
		},
	}
}

// joinMember creates a new node for a connecting session. Placement is
// breadth-first from the root: the shallowest member with open child
// capacity sponsors the newcomer, so the tree fills level by level.
func (nw *Network) joinMember(name string, controller Controller, out chan []byte) JoinResponse {
	name = normalizeMemberName(name)
	if controller != ControllerPlayer {
		controller = ControllerAI
	}
	// Exactly one player seat: a second player hello joins as AI.
	if controller == ControllerPlayer && nw.playerNodeID != "" {
		controller = ControllerAI
	}

	sponsor := nw.findSponsor()
	n := &Node{
		ID:         nw.newNodeID(),
		Name:       name,
		Level:      sponsor.Level + 1,
		ParentID:   sponsor.ID,
		Money:      nw.cfg.StarterMoney,
		Controller: controller,
	}
	n.initDefaults()
	nw.nodes[n.ID] = n
	sponsor.ChildIDs = append(sponsor.ChildIDs, n.ID)
	sponsor.Recruits++
	if controller == ControllerPlayer {
		nw.playerNodeID = n.ID
	}

	if out != nil {
		nw.clients[n.ID] = &clientState{Out: out}
	}

	token := uuid.NewString()
	n.ResumeToken = token

	return JoinResponse{Welcome: nw.buildWelcome(n.ID, token)}
}

// findSponsor walks the tree breadth-first in recruitment order and
// returns the first node with open capacity. The root always exists, and
// its capacity is unbounded as a last resort.
func (nw *Network) findSponsor() *Node {
	queue := []string{nw.rootID}
	visited := map[string]bool{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		n := nw.nodes[id]
		if n == nil {
			continue
		}
		if len(n.ChildIDs) < nw.cfg.MaxChildren {
			return n
		}
		queue = append(queue, n.ChildIDs...)
	}
	return nw.nodes[nw.rootID]
}

func (nw *Network) handleAttach(req AttachRequest) {
	token := strings.TrimSpace(req.ResumeToken)
	if token == "" || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	var found *Node
	for _, n := range nw.nodes {
		if n.ResumeToken != "" && n.ResumeToken == token {
			found = n
			break
		}
	}
	if found == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{}
		}
		return
	}

	// Attach the client and rotate the token.
	nw.clients[found.ID] = &clientState{Out: req.Out}
	newToken := uuid.NewString()
	found.ResumeToken = newToken

	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: nw.buildWelcome(found.ID, newToken)}
	}
}

func normalizeMemberName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "member"
	}
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}
