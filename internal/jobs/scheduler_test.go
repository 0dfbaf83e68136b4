package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// countingJob counts invocations and optionally fails every run.
type countingJob struct {
	runs int64
	fail bool
}

func (j *countingJob) Run(ctx context.Context) error {
	atomic.AddInt64(&j.runs, 1)
	if j.fail {
		return context.DeadlineExceeded
	}
	return nil
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{}
	s.Register("tick", 20*time.Millisecond, job)

	s.Start()
	time.Sleep(130 * time.Millisecond)
	s.Stop()

	runs := atomic.LoadInt64(&job.runs)
	if runs < 2 {
		t.Errorf("expected the job to run repeatedly, got %d runs", runs)
	}
}

func TestScheduler_FailingJobKeepsCadence(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{fail: true}
	s.Register("failing", 20*time.Millisecond, job)

	s.Start()
	time.Sleep(130 * time.Millisecond)
	s.Stop()

	if runs := atomic.LoadInt64(&job.runs); runs < 2 {
		t.Errorf("a failing job must keep its cadence, got %d runs", runs)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler()
	job := &countingJob{}
	s.Register("manual", time.Hour, job)

	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if atomic.LoadInt64(&job.runs) != 1 {
		t.Errorf("expected exactly one run, got %d", job.runs)
	}

	// Unknown jobs are a no-op, not an error.
	if err := s.RunNow("missing"); err != nil {
		t.Errorf("unexpected error for unknown job: %v", err)
	}
}

func TestScheduler_StatusCountsRuns(t *testing.T) {
	s := NewScheduler()
	s.Register("manual", time.Hour, &countingJob{})

	if err := s.RunNow("manual"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status := s.Status()
	st, ok := status["manual"]
	if !ok {
		t.Fatalf("status = %v, missing manual job", status)
	}
	if st.Runs != 1 || st.Interval != time.Hour || st.LastRun.IsZero() {
		t.Errorf("status = %+v", st)
	}
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Register("tick", time.Hour, &countingJob{})
	s.Start()
	s.Stop()
	s.Stop()

	// A second Start after Stop relaunches cleanly.
	s.Start()
	s.Stop()
}
