package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas de dominio. Viven en un paquete propio para que tenantconfig,
// limiter y credential las usen sin depender de la capa HTTP.

var (
	FeatureLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_feature_lookups_total",
		Help: "Resoluciones de feature config por resultado",
	}, []string{"feature", "result"}) // result: hit|loaded|absent|invalid|error

	AttemptVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_attempt_verdicts_total",
		Help: "Veredictos del limitador de intentos",
	}, []string{"outcome"}) // outcome: allowed|blocked|reset|error

	ChallengeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_challenge_events_total",
		Help: "Challenges biométricos emitidos y consumidos",
	}, []string{"event"}) // event: issued|completed|not_found|expired

	CredentialDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trustcore_credential_decisions_total",
		Help: "Decisiones del verificador de credenciales por operación y código",
	}, []string{"op", "code"}) // op: enroll|verify

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trustcore_store_latency_ms",
		Help:    "Latencia de operaciones de store en milisegundos",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
	}, []string{"store", "op"})
)

var all = []prometheus.Collector{
	FeatureLookups,
	AttemptVerdicts,
	ChallengeEvents,
	CredentialDecisions,
	StoreLatency,
}

// Register registra las métricas de dominio en el registry indicado (o el default si nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range all {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
