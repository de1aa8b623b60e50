package metrics

import (
	"testing"
	"time"
)

func TestInMemoryCollector(t *testing.T) {
	c := NewInMemoryCollector()

	c.CounterInc("reviews_total", "status", "ok")
	c.CounterInc("reviews_total", "status", "ok")
	c.CounterAdd("reviews_total", 3, "status", "failed")

	if got := c.GetCounter("reviews_total", "status", "ok"); got != 2 {
		t.Errorf("counter ok = %v, want 2", got)
	}
	if got := c.GetCounter("reviews_total", "status", "failed"); got != 3 {
		t.Errorf("counter failed = %v, want 3", got)
	}

	c.GaugeSet("active_reviews", 5)
	c.GaugeInc("active_reviews")
	c.GaugeDec("active_reviews")
	if got := c.GetGauge("active_reviews"); got != 5 {
		t.Errorf("gauge = %v, want 5", got)
	}

	c.HistogramObserve("review_duration_seconds", 1.5)
	c.HistogramObserve("review_duration_seconds", 2.5)
	if got := c.GetHistogram("review_duration_seconds"); len(got) != 2 {
		t.Errorf("histogram observations = %v, want 2", got)
	}
}

func TestPrometheusCollectorRegistration(t *testing.T) {
	c := NewPrometheusCollector(&PrometheusConfig{
		Namespace:              "reviewd",
		RegisterDefaultMetrics: true,
	})

	// Unregistered metric names are silently ignored.
	c.CounterInc("not_registered")

	// Registered metrics accept updates with label pairs.
	c.CounterInc(ReviewsTotal.Name, "status", "ok")
	c.HistogramObserve(ReviewDuration.Name, 12.5)

	// Double registration is a no-op, not an error.
	if err := c.RegisterCounter(ReviewsTotal); err != nil {
		t.Errorf("re-registering existing counter: %v", err)
	}

	if c.Handler() == nil {
		t.Error("Handler() = nil")
	}
}

func TestLabelsToValues(t *testing.T) {
	tests := []struct {
		name     string
		labels   []string
		expected []string
	}{
		{"pairs", []string{"status", "ok", "path", "/api/review"}, []string{"ok", "/api/review"}},
		{"empty", nil, []string{}},
		{"dangling key dropped", []string{"status"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := labelsToValues(tt.labels)
			if len(got) != len(tt.expected) {
				t.Fatalf("labelsToValues(%v) = %v, want %v", tt.labels, got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("labelsToValues(%v)[%d] = %v, want %v", tt.labels, i, got[i], tt.expected[i])
				}
			}
		})
	}
}

func TestTimer(t *testing.T) {
	c := NewInMemoryCollector()

	timer := NewTimer(c, "review_duration_seconds")
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	if d <= 0 {
		t.Errorf("ObserveDuration() = %v, want > 0", d)
	}
	if got := c.GetHistogram("review_duration_seconds"); len(got) != 1 {
		t.Errorf("histogram observations = %d, want 1", len(got))
	}
}
