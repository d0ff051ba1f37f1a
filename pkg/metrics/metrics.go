// Package metrics exposes Prometheus instrumentation for schema upgrade passes.
//
// All metrics are registered on the default registry and labelled by database,
// so one process can report on several databases. A Collector binds the label
// and implements migrator.Recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SchemaVersion tracks the schema version last observed or reached.
var SchemaVersion = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dbupdate_schema_version",
		Help: "Current schema version",
	},
	[]string{"database"},
)

// HighestVersion tracks the highest version known to the registry.
var HighestVersion = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dbupdate_highest_known_version",
		Help: "Highest schema version known to the migration registry",
	},
	[]string{"database"},
)

// UnitsAppliedTotal tracks the total number of migration units applied.
var UnitsAppliedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dbupdate_units_applied_total",
		Help: "Total migration units applied",
	},
	[]string{"database"},
)

// UnitFailuresTotal tracks the total number of migration units that failed.
var UnitFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dbupdate_unit_failures_total",
		Help: "Total migration units that failed",
	},
	[]string{"database", "unit"},
)

// ChainGapsTotal tracks passes that stopped below the highest known version.
var ChainGapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dbupdate_chain_gaps_total",
		Help: "Total passes that stopped below the highest known version",
	},
	[]string{"database"},
)

// UnitDuration tracks how long each migration unit took to apply.
var UnitDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dbupdate_unit_duration_seconds",
		Help:    "Time spent applying a migration unit",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"database"},
)

// PassDuration tracks how long a whole upgrade pass took.
var PassDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dbupdate_pass_duration_seconds",
		Help:    "Time spent in an upgrade pass",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"database"},
)

// PassState tracks the outcome of the last pass (1 for the final state, 0 otherwise).
var PassState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dbupdate_pass_state",
		Help: "Final state of the last upgrade pass (1 for the final state, 0 otherwise)",
	},
	[]string{"database", "state"},
)
