package deliverylog

import "time"

// Stats aggregates a set of attempts.
type Stats struct {
	Total            int             `json:"total"`
	ByOutcome        map[Outcome]int `json:"by_outcome"`
	ByLayer          map[Layer]int   `json:"by_layer"`
	AvgRetryLatency  time.Duration   `json:"avg_retry_latency_ns"`
	AvgMessageLength float64         `json:"avg_message_length"`
	LastDelivered    *time.Time      `json:"last_delivered,omitempty"`
	// SinceLastDelivery is zero when nothing was ever delivered.
	SinceLastDelivery time.Duration `json:"since_last_delivery_ns"`
}

// Compute derives Stats from attempts in any order.
//
// Average retry latency covers delivered attempts of the retry layer.
// Average message length covers delivered attempts. The last delivery
// ignores attempts whose send failed.
func Compute(attempts []Attempt, now time.Time) Stats {
	s := Stats{
		Total:     len(attempts),
		ByOutcome: make(map[Outcome]int, len(Outcomes)),
		ByLayer:   make(map[Layer]int, len(Layers)),
	}

	var (
		retrySum, retryN int64
		lenSum, lenN     int
	)
	for _, a := range attempts {
		s.ByOutcome[a.Outcome]++
		s.ByLayer[a.Layer]++
		if a.Outcome != OutcomeDelivered {
			continue
		}
		lenSum += a.MessageLength
		lenN++
		if a.Layer == LayerRetry {
			retrySum += a.ElapsedMs
			retryN++
		}
		if a.Succeeded() && (s.LastDelivered == nil || a.Timestamp.After(*s.LastDelivered)) {
			ts := a.Timestamp
			s.LastDelivered = &ts
		}
	}

	if retryN > 0 {
		s.AvgRetryLatency = time.Duration(retrySum/retryN) * time.Millisecond
	}
	if lenN > 0 {
		s.AvgMessageLength = float64(lenSum) / float64(lenN)
	}
	if s.LastDelivered != nil {
		s.SinceLastDelivery = now.Sub(*s.LastDelivered)
	}
	return s
}
