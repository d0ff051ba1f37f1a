package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/novabot/dbupdate/pkg/migrator"
)

// passStates are the states a pass can finish in.
var passStates = []migrator.State{
	migrator.StateUninitialized,
	migrator.StateUpToDate,
	migrator.StateFailed,
}

// Collector records pass outcomes with the database label pre-filled.
type Collector struct {
	database string
}

var _ migrator.Recorder = (*Collector)(nil)

// NewCollector creates a new Collector for the given database name.
func NewCollector(database string) *Collector {
	return &Collector{database: database}
}

// ObserveVersion sets the current and highest version gauges.
func (c *Collector) ObserveVersion(current, highest int) {
	SchemaVersion.WithLabelValues(c.database).Set(float64(current))
	HighestVersion.WithLabelValues(c.database).Set(float64(highest))
}

// UnitApplied counts an applied unit and records its duration.
func (c *Collector) UnitApplied(_ migrator.Unit, elapsed time.Duration) {
	UnitsAppliedTotal.WithLabelValues(c.database).Inc()
	UnitDuration.WithLabelValues(c.database).Observe(elapsed.Seconds())
}

// UnitFailed counts a failed unit.
func (c *Collector) UnitFailed(u migrator.Unit) {
	UnitFailuresTotal.WithLabelValues(c.database, unitLabel(u)).Inc()
}

// ChainGap counts a pass that stopped below the highest known version.
func (c *Collector) ChainGap(int) {
	ChainGapsTotal.WithLabelValues(c.database).Inc()
}

// PassFinished records the pass duration and sets the state gauge to 1 for
// the final state, 0 for the others.
func (c *Collector) PassFinished(state migrator.State, elapsed time.Duration) {
	PassDuration.WithLabelValues(c.database).Observe(elapsed.Seconds())
	for _, s := range passStates {
		if s == state {
			PassState.WithLabelValues(c.database, s.String()).Set(1)
		} else {
			PassState.WithLabelValues(c.database, s.String()).Set(0)
		}
	}
}

func unitLabel(u migrator.Unit) string {
	return fmt.Sprintf("%d_%d", u.From, u.To)
}

// WriteTextfile writes every metric in the default registry to path in the
// Prometheus text format, for pickup by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
