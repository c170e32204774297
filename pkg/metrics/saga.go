package metrics

// Saga recovery directions.
const (
	RecoveryForward  = "forward"
	RecoveryBackward = "backward"
)

// Compensation outcomes.
const (
	CompensationCompleted = "completed"
	CompensationPartial   = "partial"
)

// RecordSagaRecovery counts one recovery decision.
func (r *Registry) RecordSagaRecovery(direction string) {
	r.sagaRecoveriesTotal.WithLabelValues(direction).Inc()
}

// RecordCompensation counts one finished backward recovery by outcome.
func (r *Registry) RecordCompensation(outcome string) {
	r.sagaCompensationsTotal.WithLabelValues(outcome).Inc()
}
