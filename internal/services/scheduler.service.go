package services

import (
	"context"
	"sync"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
)

// Job is a periodic task. It runs once on registration, then every Interval, and
// never overlaps itself.
type Job interface {
	Name() string
	Execute(ctx context.Context) error
	Interval() time.Duration
}

// TaskHandle identifies a registered job for RemoveJob.
type TaskHandle string

type SchedulerService struct {
	scheduler *gocron.Scheduler
	jobs      map[TaskHandle]Job
	log       logger.Logger
	started   bool
	stopped   bool
	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewSchedulerService() *SchedulerService {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.TagsUnique()

	ctx, cancel := context.WithCancel(context.Background())

	return &SchedulerService{
		scheduler: scheduler,
		jobs:      make(map[TaskHandle]Job),
		log:       logger.New("scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *SchedulerService) executeJob(job Job, log logger.Logger) {
	if s.ctx.Err() != nil {
		return
	}

	log.Debug("Executing scheduled job", "job", job.Name())
	if err := job.Execute(s.ctx); err != nil {
		log.Er("Job execution failed", err, "job", job.Name())
	}
}

// AddJob registers job and starts the scheduler on first use.
func (s *SchedulerService) AddJob(job Job) (TaskHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("AddJob")

	if s.stopped {
		return "", log.Error("scheduler is stopped", "job", job.Name())
	}
	if job.Interval() <= 0 {
		return "", log.Error("job interval must be positive", "job", job.Name(), "interval", job.Interval())
	}

	handle := TaskHandle(uuid.New().String())
	_, err := s.scheduler.Every(job.Interval()).
		Tag(string(handle)).
		SingletonMode().
		Do(func() {
			s.executeJob(job, log)
		})
	if err != nil {
		return "", log.Err("failed to register job with scheduler", err, "job", job.Name())
	}

	s.jobs[handle] = job
	if !s.started {
		s.scheduler.StartAsync()
		s.started = true
	}

	log.Info("Job registered", "job", job.Name(), "handle", handle, "interval", job.Interval())
	return handle, nil
}

// RemoveJob stops future runs of the job. A run already in progress finishes.
func (s *SchedulerService) RemoveJob(handle TaskHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("RemoveJob")

	job, ok := s.jobs[handle]
	if !ok {
		return nil
	}

	if err := s.scheduler.RemoveByTag(string(handle)); err != nil {
		return log.Err("failed to remove job", err, "job", job.Name(), "handle", handle)
	}

	delete(s.jobs, handle)
	log.Info("Job removed", "job", job.Name(), "handle", handle)
	return nil
}

// Stop cancels running jobs and shuts the scheduler down for good.
func (s *SchedulerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.log.Function("Stop")

	if s.stopped {
		return nil
	}

	s.cancel()
	if s.started {
		s.scheduler.Stop()
	}
	s.scheduler.Clear()
	s.jobs = make(map[TaskHandle]Job)
	s.started = false
	s.stopped = true

	log.Info("Scheduler stopped")
	return nil
}

func (s *SchedulerService) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *SchedulerService) GetJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
