package history

import (
	"sync"
	"testing"
	"time"
)

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing(3)
	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		r.Push(Sample{Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
	got := r.Snapshot()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, s := range got {
		want := base.Add(time.Duration(i+2) * time.Second)
		if !s.Timestamp.Equal(want) {
			t.Fatalf("got[%d] = %v, want %v", i, s.Timestamp, want)
		}
	}
	latest, ok := r.Latest()
	if !ok || !latest.Timestamp.Equal(base.Add(4*time.Second)) {
		t.Fatalf("Latest = %v, %v", latest.Timestamp, ok)
	}
}

func TestRing_PartialFill(t *testing.T) {
	r := NewRing(4)
	if _, ok := r.Latest(); ok {
		t.Fatal("empty ring reported a latest sample")
	}
	r.Push(Sample{Endpoint: googleKey})
	r.Push(Sample{Endpoint: quad9Key})
	got := r.Snapshot()
	if len(got) != 2 || got[0].Endpoint != googleKey || got[1].Endpoint != quad9Key {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if r.Len() != 2 || r.Cap() != 4 {
		t.Fatalf("Len=%d Cap=%d", r.Len(), r.Cap())
	}
}

func TestCache_CapacityBound(t *testing.T) {
	c := NewCache(DefaultAPILimit)
	for i := 0; i < 25; i++ {
		c.Append(googleKey, Sample{Endpoint: googleKey, LatencyMs: Float(float64(i))})
	}
	got := c.Recent(googleKey)
	if len(got) != DefaultAPILimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultAPILimit)
	}
	// The 20 most recent appends, oldest first.
	for i, s := range got {
		if *s.LatencyMs != float64(i+5) {
			t.Fatalf("got[%d] latency = %v, want %d", i, *s.LatencyMs, i+5)
		}
	}
}

func TestCache_ClearOneAndAll(t *testing.T) {
	c := NewCache(5)
	c.Append(googleKey, Sample{Endpoint: googleKey})
	c.Append(quad9Key, Sample{Endpoint: quad9Key})

	c.Clear(googleKey)
	if got := c.Recent(googleKey); len(got) != 0 {
		t.Fatalf("google ring not cleared: %+v", got)
	}
	if c.Len(quad9Key) != 1 {
		t.Fatal("clearing one key must not touch another")
	}

	c.Append(googleKey, Sample{Endpoint: googleKey})
	c.Clear("")
	if len(c.Keys()) != 0 {
		t.Fatalf("Clear(all) left keys: %v", c.Keys())
	}
}

func TestCache_UnknownKey(t *testing.T) {
	c := NewCache(5)
	if got := c.Recent("https://nowhere.example"); got == nil || len(got) != 0 {
		t.Fatalf("Recent(unknown) = %#v, want empty slice", got)
	}
	if _, ok := c.Latest("https://nowhere.example"); ok {
		t.Fatal("Latest(unknown) reported a sample")
	}
}

func TestCache_ConcurrentAppendAndRead(t *testing.T) {
	c := NewCache(DefaultBroadcastLimit)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Append(googleKey, Sample{Endpoint: googleKey})
				_ = c.Recent(googleKey)
			}
		}()
	}
	wg.Wait()
	if n := c.Len(googleKey); n != DefaultBroadcastLimit {
		t.Fatalf("Len = %d, want %d", n, DefaultBroadcastLimit)
	}
}

func TestSummarize(t *testing.T) {
	samples := []Sample{
		{LatencyMs: Float(10), DoHOK: true},
		{LatencyMs: nil, DoHOK: false},
		{LatencyMs: Float(20), DoHOK: true},
		{LatencyMs: Float(31), DoHOK: false},
	}
	st := Summarize(samples)
	if st.Count != 3 || st.Samples != 4 || st.DoHOKCount != 2 {
		t.Fatalf("unexpected counts: %+v", st)
	}
	if *st.Min != 10 || *st.Max != 31 || *st.Avg != 20.33 {
		t.Fatalf("unexpected stats: min=%v max=%v avg=%v", *st.Min, *st.Max, *st.Avg)
	}
}

func TestSummarize_RoundsAvgOnly(t *testing.T) {
	st := Summarize([]Sample{
		{LatencyMs: Float(10.001)},
		{LatencyMs: Float(10.002)},
		{LatencyMs: Float(10.01)},
	})
	if *st.Avg != 10 {
		t.Fatalf("Avg = %v, want 10", *st.Avg)
	}
	if *st.Min != 10.001 || *st.Max != 10.01 {
		t.Fatalf("Min/Max = %v/%v, want raw sample values", *st.Min, *st.Max)
	}
}

func TestSummarize_NoLatency(t *testing.T) {
	st := Summarize([]Sample{{DoHOK: true}, {}})
	if st.Count != 0 || st.Min != nil || st.Max != nil || st.Avg != nil {
		t.Fatalf("expected empty stats, got %+v", st)
	}
	if st.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", st.Samples)
	}
	empty := Summarize(nil)
	if empty.Count != 0 || empty.Samples != 0 {
		t.Fatalf("Summarize(nil) = %+v", empty)
	}
}
