package bot

import "github.com/prometheus/client_golang/prometheus"

// updatesTotal counts dispatched updates by type (message/callback/other)
// and outcome (ok/error/dropped).
var updatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bot_updates_total",
		Help: "Dispatched platform updates by type and outcome.",
	},
	[]string{"type", "outcome"},
)

func init() {
	prometheus.MustRegister(updatesTotal)
}
