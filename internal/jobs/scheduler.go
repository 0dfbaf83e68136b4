package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one recurring maintenance task (cache sweep, site re-crawl,
// feedback analysis). Run must honor ctx cancellation; returning an
// error never takes the job off its cadence.
type Job interface {
	Run(ctx context.Context) error
}

// entry is one registered job plus its run bookkeeping.
type entry struct {
	name     string
	interval time.Duration
	job      Job

	mu      sync.Mutex
	lastRun time.Time
	runs    int64
}

func (e *entry) record(started time.Time) {
	e.mu.Lock()
	e.lastRun = started
	e.runs++
	e.mu.Unlock()
}

// Scheduler drives maintenance jobs on fixed intervals, one goroutine
// per job. The first run of a job happens one full interval after
// Start, never at startup; anything that must run at boot belongs in
// the wiring code, not here.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{entries: make(map[string]*entry)}
}

// Register adds a job under a unique name. Call before Start.
func (s *Scheduler) Register(name string, interval time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[name] = &entry{name: name, interval: interval, job: job}
	log.Printf("✅ [JOBS] Registered %s (every %v)", name, interval)
}

// Start launches the job loops. A second Start is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(ctx, e)
	}
	log.Printf("🚀 [JOBS] Running %d maintenance jobs", len(s.entries))
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, e)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry) {
	started := time.Now()
	if err := e.job.Run(ctx); err != nil {
		log.Printf("❌ [JOBS] %s failed after %v: %v", e.name, time.Since(started).Round(time.Millisecond), err)
	} else {
		log.Printf("✅ [JOBS] %s completed in %v", e.name, time.Since(started).Round(time.Millisecond))
	}
	e.record(started)
}

// RunNow executes a registered job immediately, outside its cadence.
// Unknown names are a no-op so an operator typo cannot crash anything.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		log.Printf("⚠️  [JOBS] No job named %q", name)
		return nil
	}

	started := time.Now()
	err := e.job.Run(context.Background())
	e.record(started)
	return err
}

// Stop cancels the job loops and waits for any in-flight run to
// finish. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	log.Println("🛑 [JOBS] Maintenance jobs stopped")
}

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name     string        `json:"name"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run"`
	Runs     int64         `json:"runs"`
}

// Status reports every registered job and how often it has run.
func (s *Scheduler) Status() map[string]JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]JobStatus, len(s.entries))
	for name, e := range s.entries {
		e.mu.Lock()
		out[name] = JobStatus{Name: name, Interval: e.interval, LastRun: e.lastRun, Runs: e.runs}
		e.mu.Unlock()
	}
	return out
}
