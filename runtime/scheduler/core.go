package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/viant/coretask/internal/affinity"
	"github.com/viant/coretask/progress"
	"github.com/viant/coretask/tracing"
)

// job is one iteration waiting for or running on a core
type job struct {
	task      *Task
	iteration uint64
	priority  int
	seq       uint64
	index     int
	ran       bool
	done      chan struct{}
}

// readyQueue orders jobs by priority, then by submission
type readyQueue []*job

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *readyQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}

// core executes one iteration at a time on a dedicated OS thread
type core struct {
	id        int
	scheduler *Scheduler
	mux       sync.Mutex
	ready     readyQueue
	seq       uint64
	signal    chan struct{}
	load      atomic.Int64
}

func newCore(id int, s *Scheduler) *core {
	return &core{id: id, scheduler: s, signal: make(chan struct{}, 1)}
}

func (c *core) submit(j *job) {
	c.load.Add(1)
	c.mux.Lock()
	c.seq++
	j.seq = c.seq
	heap.Push(&c.ready, j)
	c.mux.Unlock()
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *core) next(ctx context.Context) *job {
	for {
		c.mux.Lock()
		if c.ready.Len() > 0 {
			j := heap.Pop(&c.ready).(*job)
			c.mux.Unlock()
			return j
		}
		c.mux.Unlock()
		select {
		case <-ctx.Done():
			return nil
		case <-c.signal:
		}
	}
}

func (c *core) run(ctx context.Context) {
	defer c.scheduler.coreWg.Done()
	runtime.LockOSThread()
	pinned := false
	if c.scheduler.config.PinThreads {
		cpu := physicalCPU(c.id)
		if err := affinity.PinThread(cpu); err != nil {
			c.scheduler.logger.Printf("core %d: failed to pin to cpu %d: %v", c.id, cpu, err)
		} else {
			pinned = true
		}
	}
	if !pinned {
		// a pinned thread is discarded when the goroutine exits
		defer runtime.UnlockOSThread()
	}
	for {
		j := c.next(ctx)
		if j == nil {
			return
		}
		c.execute(j)
	}
}

func (c *core) execute(j *job) {
	t := j.task
	defer func() {
		c.load.Add(-1)
		close(j.done)
	}()
	if t.ctx.Err() != nil {
		return
	}
	t.state.Store(int32(Running))
	ctx, span := tracing.StartIteration(t.ctx, t.desc.Name, c.id, j.iteration)
	tick := &Tick{
		Task:      t.desc.Name,
		Core:      c.id,
		Iteration: j.iteration,
		Priority:  t.desc.Priority,
		ctx:       ctx,
		tracker:   c.scheduler.tracker,
	}
	err := c.invoke(t, tick)
	if err != nil {
		c.scheduler.logger.Printf("task %s iteration %d on core %d: %v", t.desc.Name, j.iteration, c.id, err)
	}
	tracing.EndSpan(span, err)
	t.iterations.Add(1)
	c.scheduler.tracker.Update(t.desc.Name, c.id, progress.Delta{Iterations: 1})
	j.ran = true
}

func (c *core) invoke(t *Task, tick *Tick) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.desc.Body(tick)
}
