package session

type Metrics struct {
	Tick    uint64  `json:"tick"`
	Lines   int     `json:"lines"`
	Over    bool    `json:"over"`
	Intents uint64  `json:"intents"`
	StepMS  float64 `json:"step_ms"`
}

// Metrics is safe to call from any goroutine. It reflects the last tick.
func (s *Session) Metrics() Metrics {
	if s == nil {
		return Metrics{}
	}
	m, ok := s.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
