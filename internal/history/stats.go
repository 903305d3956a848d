package history

import "math"

// Stats summarizes a window of samples. Min, Max, and Avg are computed over
// samples that carry a latency; they are nil when there are none. Avg is
// rounded to 2 decimals like the probe latencies; Min and Max are sample
// values and keep whatever precision the sample has.
type Stats struct {
	Min        *float64 `json:"min"`
	Max        *float64 `json:"max"`
	Avg        *float64 `json:"avg"`
	Count      int      `json:"count"`
	Samples    int      `json:"samples"`
	DoHOKCount int      `json:"doh_ok_count"`
}

// Summarize computes Stats over samples.
func Summarize(samples []Sample) Stats {
	st := Stats{Samples: len(samples)}
	var (
		sum      float64
		min, max float64
	)
	for _, s := range samples {
		if s.DoHOK {
			st.DoHOKCount++
		}
		if s.LatencyMs == nil {
			continue
		}
		v := *s.LatencyMs
		if st.Count == 0 || v < min {
			min = v
		}
		if st.Count == 0 || v > max {
			max = v
		}
		sum += v
		st.Count++
	}
	if st.Count == 0 {
		return st
	}
	avg := round2(sum / float64(st.Count))
	st.Min = Float(min)
	st.Max = Float(max)
	st.Avg = Float(avg)
	return st
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
