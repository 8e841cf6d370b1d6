package pyramid

// NetworkMetrics is a cheap cross-goroutine view for the metrics
// endpoint. Values are published atomically at the end of each step, so
// readers never touch the node store.
type NetworkMetrics struct {
	Tick    uint64  `json:"tick"`
	Nodes   int64   `json:"nodes"`
	Clients int64   `json:"clients"`
	StepMS  float64 `json:"step_ms"`

	QueueDepths QueueDepths `json:"queue_depths"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Attach int `json:"attach"`
	Leave  int `json:"leave"`
}

func (nw *Network) CurrentTick() uint64 {
	if nw == nil {
		return 0
	}
	return nw.tick.Load()
}

func (nw *Network) Metrics() NetworkMetrics {
	if nw == nil {
		return NetworkMetrics{}
	}
	return NetworkMetrics{
		Tick:    nw.tick.Load(),
		Nodes:   nw.metricNodes.Load(),
		Clients: nw.metricClients.Load(),
		StepMS:  float64(nw.metricStepNanos.Load()) / 1e6,
		QueueDepths: QueueDepths{
			Inbox:  len(nw.inbox),
			Join:   len(nw.join),
			Attach: len(nw.attach),
			Leave:  len(nw.leave),
		},
	}
}
