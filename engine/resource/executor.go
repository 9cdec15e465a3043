package resource

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// Executor runs jobs on some background context.
type Executor interface {
	// Submit schedules job to run. It must not block on job's completion.
	//
	// Parameters:
	//   - job: the work to run
	Submit(job func())
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(job func())

// Submit calls f(job).
func (f ExecutorFunc) Submit(job func()) {
	f(job)
}

// GoExecutor runs every job on its own goroutine.
var GoExecutor Executor = ExecutorFunc(func(job func()) { go job() })

// poolExecutor runs jobs on a bounded, reusable set of worker goroutines.
type poolExecutor struct {
	pool   worker.DynamicWorkerPool
	nextID atomic.Int64
}

var _ Executor = &poolExecutor{}

// NewPoolExecutor creates an Executor backed by a dynamic worker pool. Workers are spawned on
// demand up to the limit and then stay parked on the task queue for the life of the process.
//
// Parameters:
//   - workers: maximum number of concurrent jobs (values < 1 become 1)
//
// Returns:
//   - Executor: the pool-backed executor
func NewPoolExecutor(workers int) Executor {
	if workers < 1 {
		workers = 1
	}
	// queue of 256 leaves headroom for a burst of asset requests
	return &poolExecutor{pool: worker.NewDynamicWorkerPool(workers, 256, 1*time.Second)}
}

// Submit implements Executor.
func (e *poolExecutor) Submit(job func()) {
	id := int(e.nextID.Add(1))
	e.pool.SubmitTask(worker.Task{
		ID: id,
		Do: func() (any, error) {
			job()
			return nil, nil
		},
	})
}

var (
	defaultExecutor     Executor
	defaultExecutorOnce sync.Once
)

// DefaultExecutor returns the process-wide background executor used by loaders that were not
// given one explicitly.
func DefaultExecutor() Executor {
	defaultExecutorOnce.Do(func() {
		defaultExecutor = NewPoolExecutor(4)
	})
	return defaultExecutor
}

// ManualExecutor queues jobs until Drain is called. It makes asynchronous code deterministic
// in tools and tests.
type ManualExecutor struct {
	mu   sync.Mutex
	jobs []func()
}

var _ Executor = &ManualExecutor{}

// Submit queues job.
func (m *ManualExecutor) Submit(job func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = append(m.jobs, job)
}

// Pending reports the number of queued jobs.
func (m *ManualExecutor) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Drain runs queued jobs, including jobs they submit, until the queue is empty.
//
// Returns:
//   - int: the number of jobs run
func (m *ManualExecutor) Drain() int {
	n := 0
	for {
		m.mu.Lock()
		jobs := m.jobs
		m.jobs = nil
		m.mu.Unlock()
		if len(jobs) == 0 {
			return n
		}
		for _, job := range jobs {
			job()
			n++
		}
	}
}
