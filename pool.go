package taskgraph

import "sync"

// pool is a fixed-size worker pool servicing the units of one tag.
// Submissions queue on an unbuffered channel when all workers are busy;
// nothing is ever dropped (spec.md §4.3 "Pool semantics required by the
// contract"). It generalizes the teacher's one-goroutine-per-task
// dagScheduler.runTask into a bounded pool, the one place this module
// must diverge from the teacher's literal code to satisfy spec.md's
// "Fixed-size, bounded concurrency" requirement.
type pool struct {
	jobs chan func()
	wg   sync.WaitGroup

	closeOnce sync.Once
}

// newPool starts workers goroutines reading off an internal job
// channel until it is closed.
func newPool(workers int) *pool {
	if workers <= 0 {
		workers = 1
	}
	p := &pool{jobs: make(chan func())}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
}

// submit queues a job. It blocks until a worker is free to accept it,
// which is how boundedness is enforced: there is no buffering beyond
// what the caller's own goroutine provides.
func (p *pool) submit(job func()) {
	p.jobs <- job
}

// shutdown closes the job channel so workers exit once drained, and
// optionally waits for all in-flight and queued work to finish. A pool
// must not be submitted to again after shutdown (spec.md §4.3).
func (p *pool) shutdown(wait bool) {
	p.closeOnce.Do(func() {
		close(p.jobs)
	})
	if wait {
		p.wg.Wait()
	}
}
