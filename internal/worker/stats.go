package worker

// Stats reports the current occupancy of the pool, exposed on the
// /healthz endpoint so an operator can see whether verify traffic is
// backing up behind the CPU-bound exponentiation stage.
type Stats struct {
	Workers     int   `json:"workers"`
	Queued      int   `json:"queued"`
	QueueLimit  int   `json:"queue_limit"`
	TasksTotal  int64 `json:"tasks_total"`
	TasksFailed int64 `json:"tasks_failed"`
}

// Stats returns a snapshot of the pool's current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:     p.config.Workers,
		Queued:      len(p.queue),
		QueueLimit:  cap(p.queue),
		TasksTotal:  p.tasksTotal.Load(),
		TasksFailed: p.tasksFailed.Load(),
	}
}
