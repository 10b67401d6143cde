package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	interval time.Duration
	runs     atomic.Int32
}

func (j *countingJob) Name() string {
	return j.name
}

func (j *countingJob) Execute(ctx context.Context) error {
	j.runs.Add(1)
	return nil
}

func (j *countingJob) Interval() time.Duration {
	return j.interval
}

func TestSchedulerService_RunsJobOnRegistration(t *testing.T) {
	scheduler := NewSchedulerService()
	defer func() { _ = scheduler.Stop(context.Background()) }()

	job := &countingJob{name: "poll", interval: time.Hour}
	handle, err := scheduler.AddJob(job)
	require.NoError(t, err)
	assert.NotEmpty(t, handle)
	assert.True(t, scheduler.IsRunning())
	assert.Equal(t, 1, scheduler.GetJobCount())

	require.Eventually(t, func() bool {
		return job.runs.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, scheduler.RemoveJob(handle))
	assert.Equal(t, 0, scheduler.GetJobCount())
	assert.NoError(t, scheduler.RemoveJob(handle))
}

func TestSchedulerService_RejectsInvalidJobs(t *testing.T) {
	scheduler := NewSchedulerService()

	_, err := scheduler.AddJob(&countingJob{name: "zero"})
	assert.Error(t, err)

	require.NoError(t, scheduler.Stop(context.Background()))
	_, err = scheduler.AddJob(&countingJob{name: "late", interval: time.Minute})
	assert.Error(t, err)
	assert.False(t, scheduler.IsRunning())
}
