package nebula

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/nebula/content"
	"github.com/eringen/nebula/logger"
	"github.com/eringen/nebula/metrics"
)

// Scheduler owns schedule records and runs them through a PostComposer.
type Scheduler struct {
	store     *Store
	composer  PostComposer
	log       logger.Logger
	metrics   *metrics.Metrics
	author    string
	onPublish func()
	now       func() time.Time

	mu sync.Mutex // one run at a time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerAuthor sets the author recorded on generated posts.
func WithSchedulerAuthor(name string) SchedulerOption {
	return func(s *Scheduler) { s.author = name }
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(l logger.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// WithSchedulerMetrics records run outcomes into m.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithOnPublish registers fn to be called after a run saved posts.
func WithOnPublish(fn func()) SchedulerOption {
	return func(s *Scheduler) { s.onPublish = fn }
}

// NewScheduler returns a Scheduler that stores into store.
func NewScheduler(store *Store, composer PostComposer, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:    store,
		composer: composer,
		log:      logger.NewNop(),
		author:   "AI Scheduler",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunResult describes one completed or aborted run.
type RunResult struct {
	ScheduleID      string    `json:"scheduleId"`
	PostIDs         []string  `json:"postIds"`
	ImagesRequested int       `json:"imagesRequested"`
	ImagesObtained  int       `json:"imagesObtained"`
	NextRun         time.Time `json:"nextRun"`
}

// Save fills defaults, validates and stores sc. A new schedule gets an id
// and is due immediately; an update without NextRun keeps the stored one.
func (s *Scheduler) Save(sc ScheduleConfig) (ScheduleConfig, error) {
	sc.Topic = strings.TrimSpace(sc.Topic)
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if sc.Frequency == "" {
		sc.Frequency = FrequencyDaily
	}
	if sc.PostsPerRun == 0 {
		sc.PostsPerRun = 1
	}
	if sc.NextRun.IsZero() {
		if prev, err := s.store.GetSchedule(sc.ID); err == nil {
			sc.NextRun = prev.NextRun
		} else if errors.Is(err, ErrNotFound) {
			sc.NextRun = s.now().UTC()
		} else {
			return ScheduleConfig{}, fmt.Errorf("load schedule: %w", err)
		}
	}
	sc.ContentConfig = sc.ContentConfig.WithDefaults()
	if err := sc.Validate(); err != nil {
		return ScheduleConfig{}, fmt.Errorf("%w: %w", content.ErrInvalidConfig, err)
	}
	if err := s.store.SaveSchedule(sc); err != nil {
		return ScheduleConfig{}, fmt.Errorf("save schedule: %w", err)
	}
	return sc, nil
}

// List returns all schedules.
func (s *Scheduler) List() ([]ScheduleConfig, error) {
	return s.store.ListSchedules()
}

// Get returns one schedule.
func (s *Scheduler) Get(id string) (ScheduleConfig, error) {
	return s.store.GetSchedule(id)
}

// Delete removes a schedule.
func (s *Scheduler) Delete(id string) error {
	return s.store.DeleteSchedule(id)
}

// RunNow runs the schedule regardless of its next run time or enabled flag.
func (s *Scheduler) RunNow(ctx context.Context, id string) (RunResult, error) {
	res, _, err := s.run(ctx, id, s.now(), false)
	return res, err
}

// Tick runs every enabled schedule due at now. A failing schedule does not
// stop the others; all errors are joined.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) ([]RunResult, error) {
	schedules, err := s.store.ListSchedules()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	var results []RunResult
	var errs []error
	for _, sc := range schedules {
		if !sc.Due(now) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, ran, err := s.run(ctx, sc.ID, now, true)
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			errs = append(errs, err)
		case ran:
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}

// Start calls Tick every interval until the returned stop function is
// called. Stopping cancels a run in progress.
func (s *Scheduler) Start(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				results, err := s.Tick(ctx, s.now())
				if err != nil {
					s.log.Error("Scheduler tick failed", logger.Error(err))
				}
				if len(results) > 0 {
					s.log.Info("Scheduler tick", logger.Int("runs", len(results)))
				}
			case <-ctx.Done():
				ticker.Stop()
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// run composes PostsPerRun posts and saves them as published. The record
// is read under the run lock, so a tick never acts on a list that another
// run has already advanced; with onlyDue it is skipped unless still due.
// The next run time only moves when every post succeeded, and only that
// field is written back.
func (s *Scheduler) run(ctx context.Context, id string, now time.Time, onlyDue bool) (res RunResult, ran bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc, err := s.store.GetSchedule(id)
	if err != nil {
		return RunResult{}, false, err
	}
	if onlyDue && !sc.Due(now) {
		return RunResult{}, false, nil
	}
	ran = true

	res = RunResult{ScheduleID: sc.ID, NextRun: sc.NextRun}
	log := s.log.With(logger.String("schedule_id", sc.ID), logger.String("topic", sc.Topic))
	defer func() {
		s.metrics.ObserveScheduleRun(err)
		if len(res.PostIDs) > 0 && s.onPublish != nil {
			s.onPublish()
		}
	}()

	count := sc.PostsPerRun
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		post, set, err := s.composer.Compose(ctx, sc.Topic, sc.ContentConfig, ComposeOptions{
			Author: s.author,
			Status: StatusPublished,
			Now:    now,
		})
		if err != nil {
			log.Error("Scheduled run failed", logger.Int("post", i+1), logger.Error(err))
			return res, ran, fmt.Errorf("schedule %s: %w", sc.ID, err)
		}
		if err := s.store.SavePost(post); err != nil {
			return res, ran, fmt.Errorf("schedule %s: save post: %w", sc.ID, err)
		}
		s.metrics.ObservePostSaved(string(post.Status))
		res.PostIDs = append(res.PostIDs, post.ID)
		res.ImagesRequested += set.Requested
		res.ImagesObtained += set.Obtained()
	}

	// The record may have been edited or deleted while composing.
	current, err := s.store.GetSchedule(sc.ID)
	if errors.Is(err, ErrNotFound) {
		log.Info("Schedule deleted during run", logger.Int("posts", len(res.PostIDs)))
		return res, ran, nil
	}
	if err != nil {
		return res, ran, fmt.Errorf("schedule %s: reload: %w", sc.ID, err)
	}
	current.NextRun = current.Advance(now).UTC()
	if err := s.store.SaveSchedule(current); err != nil {
		return res, ran, fmt.Errorf("schedule %s: advance: %w", sc.ID, err)
	}
	res.NextRun = current.NextRun
	log.Info("Scheduled run complete",
		logger.Int("posts", len(res.PostIDs)),
		logger.Int("images_requested", res.ImagesRequested),
		logger.Int("images_obtained", res.ImagesObtained),
		logger.Time("next_run", current.NextRun),
	)
	return res, ran, nil
}
