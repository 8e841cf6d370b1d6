package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"pyramid.gg/internal/protocol"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name       = flag.String("name", "bot", "member name")
		controller = flag.String("controller", "AI", "controller kind (AI or PLAYER)")
		seed       = flag.Int64("seed", 1, "policy rng seed")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		MemberName:      *name,
		Controller:      *controller,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	policy := &botPolicy{rng: rand.New(rand.NewSource(*seed))}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME node_id=%s tick_rate=%d seed=%d", w.NodeID, w.NetworkParams.TickRateHz, w.NetworkParams.Seed)

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			policy.handleObs(conn, logger, &obs)
		}
	}
}

// botPolicy is a deliberately simple climber: recruit until the downline
// pays, invest spare money upward, and attempt a coup when the odds and
// the bankroll look good.
type botPolicy struct {
	rng *rand.Rand
}

func (p *botPolicy) handleObs(conn *websocket.Conn, logger *log.Logger, obs *protocol.ObsMsg) {
	var intents []protocol.IntentReq

	// Grow the downline early: recruiting raises power and tier.
	if obs.Tick%50 == 0 && len(obs.Self.ChildIDs) < 5 {
		intents = append(intents, protocol.IntentReq{
			ID:   fmt.Sprintf("I_recruit_%d", obs.Tick),
			Type: "RECRUIT",
			Name: fmt.Sprintf("%s-r%d", obs.Self.Name, obs.Self.Recruits+1),
		})
	}

	// Park spare money in the parent when headroom exists.
	if obs.Tick%120 == 30 && obs.Metrics.MaxInvestUpline > 0 && obs.Self.Money > 200 {
		amount := obs.Self.Money / 4
		if amount > obs.Metrics.MaxInvestUpline {
			amount = obs.Metrics.MaxInvestUpline
		}
		if amount > 0 {
			intents = append(intents, protocol.IntentReq{
				ID:       fmt.Sprintf("I_invest_%d", obs.Tick),
				Type:     "INVEST",
				TargetID: obs.Metrics.ParentID,
				Amount:   amount,
			})
		}
	}

	// Go for the throne when affordable and the roll looks winnable.
	if obs.Tick%600 == 90 &&
		obs.Metrics.ParentID != "" &&
		obs.Self.CoupCooldownUntil <= obs.Tick &&
		obs.Self.Money > obs.Metrics.CoupCost*2 &&
		obs.Metrics.CoupChance > 35 {
		bonus := int64(0)
		if p.rng.Float64() < 0.5 {
			bonus = obs.Self.Money / 10
		}
		intents = append(intents, protocol.IntentReq{
			ID:    fmt.Sprintf("I_coup_%d", obs.Tick),
			Type:  "ATTEMPT_COUP",
			Bonus: bonus,
		})
		logger.Printf("attempting coup: cost=%d chance=%.1f bonus=%d", obs.Metrics.CoupCost, obs.Metrics.CoupChance, bonus)
	}

	if obs.Tick%500 == 0 {
		intents = append(intents, protocol.IntentReq{
			ID:   fmt.Sprintf("I_say_%d", obs.Tick),
			Type: "SAY",
			Text: fmt.Sprintf("level=%d money=%d power=%.1f", obs.Self.Level, obs.Self.Money, obs.Metrics.Power),
		})
	}

	for _, ev := range obs.Events {
		if ev["type"] == "COUP_RESOLVED" {
			logger.Printf("coup resolved: %v", ev)
		}
	}

	if len(intents) == 0 {
		return
	}
	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            obs.Tick,
		NodeID:          obs.NodeID,
		Intents:         intents,
	}
	_ = conn.WriteJSON(act)
}
