package metrics

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimer(t *testing.T) {
	m := New()
	timer := m.Timer("test")
	timer.Start()
	time.Sleep(time.Millisecond)
	delta := timer.Stop()
	if delta <= 0 {
		t.Errorf("expected positive delta, got %d", delta)
	}
	if timer.Int64() < delta {
		t.Errorf("expected accumulated value >= last delta")
	}

	// stopping without starting accumulates nothing
	before := timer.Int64()
	if delta := timer.Stop(); delta != 0 {
		t.Errorf("expected zero delta, got %d", delta)
	}
	if timer.Int64() != before {
		t.Errorf("expected value unchanged")
	}
}

func TestCounter(t *testing.T) {
	m := New()
	c := m.Counter("hits")
	c.Incr()
	c.Add(4)
	if exp, act := uint64(5), c.Value().(uint64); exp != act {
		t.Errorf("expected %d, got %d", exp, act)
	}
}

func TestHistogram(t *testing.T) {
	m := New()
	h := m.Histogram("latency")
	for i := int64(1); i <= 100; i++ {
		h.Update(i)
	}
	values := h.Value().(map[string]interface{})
	if exp, act := int64(100), values["count"].(int64); exp != act {
		t.Errorf("expected count %d, got %d", exp, act)
	}
	if exp, act := int64(1), values["min"].(int64); exp != act {
		t.Errorf("expected min %d, got %d", exp, act)
	}
	if exp, act := int64(100), values["max"].(int64); exp != act {
		t.Errorf("expected max %d, got %d", exp, act)
	}
}

func TestAllAndClear(t *testing.T) {
	m := New()
	m.Counter("a").Incr()
	m.Timer("b")
	m.Histogram("c")

	all := m.All()
	for _, key := range []string{"counter_a", "timer_b_ns", "histogram_c"} {
		if _, ok := all[key]; !ok {
			t.Errorf("expected key %q in %v", key, all)
		}
	}

	if _, err := json.Marshal(m); err != nil {
		t.Fatal(err)
	}

	m.Clear()
	if exp, act := 0, len(m.All()); exp != act {
		t.Errorf("expected empty metrics after clear, got %v", m.All())
	}
}
