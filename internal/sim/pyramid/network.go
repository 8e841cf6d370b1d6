package pyramid

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"pyramid.gg/internal/protocol"
)

// Network is the organization tree plus everything needed to run it:
// the node store, the config, and the runtime channels. One goroutine
// (Run) exclusively owns all mutable state; this is the single
// mutual-exclusion boundary for the whole engine.
type Network struct {
	cfg NetworkConfig

	nodes        map[string]*Node
	rootID       string
	playerNodeID string

	tick        atomic.Uint64
	nextNodeNum atomic.Uint64

	// Published for the metrics endpoint; updated at the end of each step.
	metricNodes     atomic.Int64
	metricClients   atomic.Int64
	metricStepNanos atomic.Int64

	// roll is the engine's only source of randomness (coup resolution).
	// Injected so every other path stays deterministic and testable.
	roll func() float64

	clients map[string]*clientState

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan string
	stop   chan struct{}

	tickLogger   TickLogger
	auditLogger  AuditLogger
	snapshotSink chan Snapshot
}

type clientState struct {
	Out chan []byte
}

type ActionEnvelope struct {
	NodeID string
	Act    protocol.ActMsg
}

type JoinRequest struct {
	Name       string
	Controller Controller
	Out        chan []byte
	Resp       chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// TickLogger receives one entry per processed tick.
type TickLogger interface {
	WriteTick(TickLogEntry) error
}

// AuditLogger receives structural mutations (coups, promotions, recruits).
type AuditLogger interface {
	WriteAudit(AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedJoin struct {
	NodeID     string `json:"node_id"`
	Name       string `json:"name"`
	Controller string `json:"controller,omitempty"`
}

type RecordedAction struct {
	NodeID string          `json:"node_id"`
	Act    protocol.ActMsg `json:"act"`
}

type AuditEntry struct {
	Tick   uint64         `json:"tick"`
	NodeID string         `json:"node_id"`
	Kind   string         `json:"kind"`
	Detail map[string]any `json:"detail,omitempty"`
}

func New(cfg NetworkConfig) (*Network, error) {
	cfg.applyDefaults()
	if cfg.ID == "" {
		return nil, fmt.Errorf("network id required")
	}

	nw := &Network{
		cfg:     cfg,
		nodes:   map[string]*Node{},
		clients: map[string]*clientState{},
		inbox:   make(chan ActionEnvelope, 256),
		join:    make(chan JoinRequest, 16),
		attach:  make(chan AttachRequest, 16),
		leave:   make(chan string, 16),
		stop:    make(chan struct{}),
	}
	nw.seedRoller(cfg.Seed)

	// The founder seat: every later member hangs off this subtree.
	rootID := nw.newNodeID()
	root := &Node{
		ID:         rootID,
		Name:       "founder",
		Level:      0,
		Money:      cfg.FounderMoney,
		Controller: ControllerAI,
	}
	root.initDefaults()
	nw.nodes[rootID] = root
	nw.rootID = rootID

	return nw, nil
}

func (nw *Network) seedRoller(seed int64) {
	r := rand.New(rand.NewSource(seed))
	nw.roll = r.Float64
}

// SetRoller replaces the random source used for coup resolution.
// Tests inject fixed rollers to force outcomes.
func (nw *Network) SetRoller(roll func() float64) {
	if roll != nil {
		nw.roll = roll
	}
}

func (nw *Network) SetTickLogger(l TickLogger)       { nw.tickLogger = l }
func (nw *Network) SetAuditLogger(l AuditLogger)     { nw.auditLogger = l }
func (nw *Network) SetSnapshotSink(ch chan Snapshot) { nw.snapshotSink = ch }

func (nw *Network) Inbox() chan<- ActionEnvelope { return nw.inbox }
func (nw *Network) Join() chan<- JoinRequest     { return nw.join }
func (nw *Network) Attach() chan<- AttachRequest { return nw.attach }
func (nw *Network) Leave() chan<- string         { return nw.leave }

func (nw *Network) ID() string {
	if nw == nil {
		return ""
	}
	return nw.cfg.ID
}

func (nw *Network) TickRateHz() int {
	if nw == nil {
		return 0
	}
	return nw.cfg.TickRateHz
}

func (nw *Network) Config() NetworkConfig { return nw.cfg }

func (nw *Network) RootID() string { return nw.rootID }

func (nw *Network) newNodeID() string {
	n := nw.nextNodeNum.Add(1)
	return fmt.Sprintf("N%06d", n)
}

func (nw *Network) auditEvent(tick uint64, nodeID, kind string, detail map[string]any) {
	if nw.auditLogger == nil {
		return
	}
	_ = nw.auditLogger.WriteAudit(AuditEntry{Tick: tick, NodeID: nodeID, Kind: kind, Detail: detail})
}
