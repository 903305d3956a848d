// Package monitor drives periodic health sampling of the active DoH
// endpoint and fans the resulting status out to live observers.
package monitor

import (
	"time"

	"github.com/Resinat/dohswitch/internal/daemon"
	"github.com/Resinat/dohswitch/internal/endpoint"
	"github.com/Resinat/dohswitch/internal/history"
)

// HistoryPointTimeLayout formats HistoryPoint.Time.
const HistoryPointTimeLayout = "15:04:05"

// HistoryPoint is one sample as shown in a status timeline.
type HistoryPoint struct {
	Time  string   `json:"time"`
	Ping  *float64 `json:"ping"`
	DoHOK bool     `json:"doh_ok"`
}

// StatusEvent is the snapshot pushed to observers once per tick.
type StatusEvent struct {
	Time          time.Time          `json:"time"`
	Provider      string             `json:"provider"`
	ProviderURL   string             `json:"provider_url"`
	Endpoint      endpoint.Key       `json:"base_url"`
	ServiceStatus string             `json:"service_status"`
	NetworkInfo   daemon.NetworkInfo `json:"network_info"`
	CurrentPing   *float64           `json:"current_ping"`
	DoHOK         bool               `json:"doh_ok"`
	PingHistory   []HistoryPoint     `json:"ping_history"`
}

// NewStatusEvent builds an event from a ring snapshot ordered oldest first.
// The newest sample supplies CurrentPing and DoHOK.
func NewStatusEvent(now time.Time, active endpoint.Active, serviceStatus string, net daemon.NetworkInfo, ring []history.Sample) StatusEvent {
	ev := StatusEvent{
		Time:          now,
		Provider:      active.Name,
		ProviderURL:   active.FullURL,
		Endpoint:      active.Key,
		ServiceStatus: serviceStatus,
		NetworkInfo:   net,
		PingHistory:   make([]HistoryPoint, 0, len(ring)),
	}
	for _, s := range ring {
		ev.PingHistory = append(ev.PingHistory, HistoryPoint{
			Time:  s.Timestamp.Local().Format(HistoryPointTimeLayout),
			Ping:  s.LatencyMs,
			DoHOK: s.DoHOK,
		})
	}
	if n := len(ring); n > 0 {
		ev.CurrentPing = ring[n-1].LatencyMs
		ev.DoHOK = ring[n-1].DoHOK
	}
	return ev
}
