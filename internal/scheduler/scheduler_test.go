package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"akinmueble/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reindexStub struct{ calls int }

func (r *reindexStub) Reindex(context.Context) (int, error) {
	r.calls++
	return 3, nil
}

type digestStub struct {
	age time.Duration
	err error
}

func (d *digestStub) SendStaleDigest(_ context.Context, age time.Duration) (int, error) {
	d.age = age
	return 1, d.err
}

func TestJobs(t *testing.T) {
	cfg := &config.Config{SearchReindexCron: "0 3 * * *", StaleRequestCron: "", StaleRequestAge: 72 * time.Hour}
	digests := &digestStub{}

	jobs := Jobs(cfg, &reindexStub{}, digests)
	require.Len(t, jobs, 2)
	assert.Equal(t, "search_reindex", jobs[0].Name)
	assert.Equal(t, "stale_request_digest", jobs[1].Name)

	require.NoError(t, RunJob(context.Background(), jobs[1]))
	assert.Equal(t, 72*time.Hour, digests.age)

	assert.Len(t, Jobs(cfg, nil, digests), 1)
}

func TestSchedulerSkipsDisabledJobs(t *testing.T) {
	cfg := &config.Config{SearchReindexCron: "0 3 * * *", StaleRequestCron: ""}
	s := New(Jobs(cfg, &reindexStub{}, &digestStub{})...)

	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.Entries())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(Job{Name: "bad", Spec: "every tuesday", Run: func(context.Context) error { return nil }})
	assert.Error(t, s.Start())
}

func TestRunJob_ReportsFailure(t *testing.T) {
	boom := errors.New("boom")
	err := RunJob(context.Background(), Job{Name: "failing", Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return boom
	}})
	assert.ErrorIs(t, err, boom)
}
