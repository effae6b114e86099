package schedjobs

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zeptools/gw-docprint/svc"
)

// Scheduler runs cron jobs at minute resolution.
// A job still running from the previous minute is skipped.
type Scheduler struct {
	Ctx      context.Context    // Service Context
	cancel   context.CancelFunc // Service Context CancelFunc
	state    int                // internal service state
	done     chan error         // Shutdown Error Channel
	cronJobs []*CronJob
	mu       sync.Mutex
	wg       sync.WaitGroup
	// Default Callback
	OnCronJobFinished func(job *CronJob, err error)
}

func NewScheduler(parentCtx context.Context) *Scheduler {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	return &Scheduler{
		Ctx:    svcCtx,
		cancel: svcCancel,
		state:  svc.StateREADY,
		done:   make(chan error, 1),
	}
}

func (s *Scheduler) Name() string {
	return "JobScheduler"
}

func (s *Scheduler) Start() error {
	if s.state != svc.StateREADY {
		return fmt.Errorf("cannot start. state=%s", svc.StateName(s.state))
	}
	s.state = svc.StateRUNNING
	go s.loop()
	log.Println("[INFO][SCHED] job scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	if s.state != svc.StateRUNNING {
		log.Println("[ERROR][SCHED] cannot stop. not running")
		return
	}
	s.state = svc.StateSTOPPED
	s.cancel()
	log.Println("[INFO][SCHED] job scheduler stopping")
}

func (s *Scheduler) Done() <-chan error {
	return s.done
}

func (s *Scheduler) loop() {
	// align ticks to the start of a minute
	first := time.Until(time.Now().Truncate(time.Minute).Add(time.Minute))
	timer := time.NewTimer(first)
	defer timer.Stop()
	for {
		select {
		case now := <-timer.C:
			s.runCronJobs(now)
			timer.Reset(time.Until(now.Truncate(time.Minute).Add(time.Minute)))
		case <-s.Ctx.Done():
			s.wg.Wait() // wait for running tasks
			log.Println("[INFO][SCHED] job scheduler stopped")
			s.done <- nil
			return
		}
	}
}

func (s *Scheduler) runCronJobs(now time.Time) {
	s.mu.Lock()
	jobs := append([]*CronJob(nil), s.cronJobs...) // copy so unlocking early is possible
	s.mu.Unlock()
	for _, job := range jobs {
		if job.Matches(now) {
			s.runCronJob(job)
		}
	}
}

func (s *Scheduler) runCronJob(job *CronJob) {
	if !job.running.CompareAndSwap(false, true) {
		log.Printf("[WARN][SCHED] job %q still running, skipped", job.ID)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer job.running.Store(false)
		err := s.runTask(job)
		if job.OnFinished != nil {
			job.OnFinished(err)
		}
		if s.OnCronJobFinished != nil {
			s.OnCronJobFinished(job, err)
		}
	}()
}

func (s *Scheduler) runTask(job *CronJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in job %q: %v", job.ID, r)
		}
	}()
	return job.Task(s.Ctx)
}

func (s *Scheduler) AddCronJob(job *CronJob) error {
	if job.Task == nil {
		return fmt.Errorf("job %q has no task", job.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.cronJobs {
		if j.ID == job.ID {
			return fmt.Errorf("job %q already added", job.ID)
		}
	}
	s.cronJobs = append(s.cronJobs, job)
	log.Printf("[INFO][SCHED] cron job %q added", job.ID)
	return nil
}

// GetCronJobs returns a copy of all registered cron jobs
func (s *Scheduler) GetCronJobs() []*CronJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*CronJob(nil), s.cronJobs...)
}

// DeleteCronJob removes a cron job by its ID
func (s *Scheduler) DeleteCronJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	newJobs := s.cronJobs[:0] // reuse underlying array
	for _, job := range s.cronJobs {
		if job.ID != jobID {
			newJobs = append(newJobs, job)
		}
	}
	s.cronJobs = newJobs
}
