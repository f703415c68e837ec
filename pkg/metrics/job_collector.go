package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/clipforge/clipforge/internal/store/model"
)

// JobCounter reports how many jobs are stored in each state.
type JobCounter interface {
	CountByState(ctx context.Context) (map[model.JobState]int64, error)
}

type jobStateCollector struct {
	counter JobCounter
	total   *prometheus.Desc
}

// NewJobStateCollector returns a collector that queries the job counts on
// every scrape.
func NewJobStateCollector(counter JobCounter) prometheus.Collector {
	return &jobStateCollector{
		counter: counter,
		total: prometheus.NewDesc(
			fmt.Sprintf("%s_jobs_total", clipforge),
			"Total number of stored jobs by state.",
			[]string{stateLabel},
			prometheus.Labels{},
		),
	}
}

func (c *jobStateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
}

// Collect implements Collector.
func (c *jobStateCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := c.counter.CountByState(ctx)
	if err != nil {
		zap.S().Named("job_collector").Errorf("failed to collect job statistics: %s", err)
		return
	}

	for _, state := range []model.JobState{model.JobStateQueued, model.JobStateRunning, model.JobStateCompleted, model.JobStateFailed} {
		ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(counts[state]), string(state))
	}
}
