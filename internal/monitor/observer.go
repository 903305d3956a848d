package monitor

import "github.com/Resinat/dohswitch/internal/history"

// Observer receives sampler and hub telemetry.
type Observer interface {
	ObserveSample(s history.Sample)
	ObserveStoreError(op string)
	ObserveSubscribers(n int)
	ObserveDropped()
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) ObserveSample(history.Sample) {}
func (NopObserver) ObserveStoreError(string)     {}
func (NopObserver) ObserveSubscribers(int)       {}
func (NopObserver) ObserveDropped()              {}
