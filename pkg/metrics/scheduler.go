package metrics

// RecordSchedulerBatch records one waveless admission batch.
func (r *Registry) RecordSchedulerBatch(batchSize, admitted int) {
	r.schedulerBatchesTotal.Inc()
	r.schedulerBatchSize.Observe(float64(batchSize))
	r.schedulerAdmissionsTotal.Add(float64(admitted))
}

// SetSchedulerQueueDepth updates the admission queue depth gauge.
func (r *Registry) SetSchedulerQueueDepth(depth float64) {
	r.schedulerQueueDepth.Set(depth)
}

// RecordAdmissionPaused counts one tick on which admission yielded to
// overload.
func (r *Registry) RecordAdmissionPaused() {
	r.schedulerAdmissionPausedTotal.Inc()
}
