package audit

import "context"

// run drains the async queue until Close. Each record gets its own write
// timeout and failures are only logged.
func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		r.metrics.setBufferDepth(len(r.queue))
		_ = r.write(context.Background(), rec)
	}
}
