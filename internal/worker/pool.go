package worker

import (
	"context"
	"sync"
)

// Job is a unit of work run by the pool.
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a finished job reports back.
type Result interface {
	GetError() error
}

// Pool fans submitted jobs out across a fixed set of goroutines.
// Workers start running on construction; Wait drains the results after
// the last Submit.
type Pool struct {
	size    int
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewPool starts size workers. A size below one is raised to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		size:    size,
		jobs:    make(chan Job, size*2),
		results: make(chan Result, size*2),
		ctx:     ctx,
		cancel:  cancel,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			select {
			case p.results <- job.Execute(p.ctx):
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues a job. Submissions after Shutdown are dropped.
func (p *Pool) Submit(job Job) {
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
	}
}

// Wait closes the queue, lets the workers finish, and returns every
// collected result. Call it exactly once, after the last Submit.
func (p *Pool) Wait() []Result {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()

	var out []Result
	for res := range p.results {
		out = append(out, res)
	}
	return out
}

// Shutdown cancels in-flight jobs and blocks until the workers exit.
func (p *Pool) Shutdown() {
	p.cancel()
	p.wg.Wait()
}
