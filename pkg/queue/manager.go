package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"
)

// SendArgs is the payload of one queued send: the UUID of the log snapshot
// created synchronously at queue time.
type SendArgs struct {
	LogUUID string `json:"log_uuid"`
}

func (SendArgs) Kind() string { return "mailcraft:send" }

// periodicArgs routes periodic jobs to their registered task by name.
type periodicArgs struct {
	TaskName string `json:"task_name"`
}

func (periodicArgs) Kind() string { return "mailcraft:periodic" }

// Dispatcher executes a queued send from its log snapshot. Implemented by
// the client layer.
type Dispatcher interface {
	DispatchQueued(ctx context.Context, logUUID string) error
}

// Config holds queue configuration.
type Config struct {
	// MaxWorkers bounds concurrent job execution in this process.
	MaxWorkers int `env:"QUEUE_MAX_WORKERS" envDefault:"10" yaml:"max_workers"`
}

// Manager owns the River client: enqueueing, the send worker, and periodic
// tasks.
type Manager struct {
	client *river.Client[pgx.Tx]
	logger *slog.Logger
	tasks  map[string]func(context.Context) error

	mu      sync.Mutex
	started bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	logger    *slog.Logger
	periodics []periodicTask
}

type periodicTask struct {
	name     string
	schedule string
	run      func(context.Context) error
}

// WithManagerLogger sets the logger passed to River and the workers.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPeriodicTask registers a named task run on a cron schedule
// (minute-granularity, standard five-field syntax).
func WithPeriodicTask(name, schedule string, run func(context.Context) error) ManagerOption {
	return func(c *managerConfig) {
		c.periodics = append(c.periodics, periodicTask{name: name, schedule: schedule, run: run})
	}
}

// NewManager creates the queue manager. Jobs can be enqueued before Start.
func NewManager(pool *pgxpool.Pool, dispatcher Dispatcher, cfg Config, opts ...ManagerOption) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	mc := &managerConfig{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(mc)
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}

	tasks := make(map[string]func(context.Context) error, len(mc.periodics))
	var periodicJobs []*river.PeriodicJob
	for _, p := range mc.periodics {
		schedule, err := parseCronSchedule(p.schedule)
		if err != nil {
			return nil, fmt.Errorf("queue: invalid cron schedule %q for %s: %w", p.schedule, p.name, err)
		}
		tasks[p.name] = p.run

		name := p.name
		periodicJobs = append(periodicJobs, river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return &periodicArgs{TaskName: name}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		))
	}

	m := &Manager{
		logger: mc.logger,
		tasks:  tasks,
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &sendWorker{dispatcher: dispatcher, logger: mc.logger})
	river.AddWorker(workers, &periodicWorker{manager: m, logger: mc.logger})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: periodicJobs,
		Logger:       mc.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("queue: create client: %w", err)
	}
	m.client = client
	return m, nil
}

// EnqueueSend queues a send for the given log snapshot.
func (m *Manager) EnqueueSend(ctx context.Context, logUUID string) error {
	if _, err := m.client.Insert(ctx, SendArgs{LogUUID: logUUID}, nil); err != nil {
		return fmt.Errorf("queue: enqueue send %s: %w", logUUID, err)
	}
	return nil
}

// Start begins processing jobs.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("queue: start client: %w", err)
	}
	m.started = true
	m.logger.Info("queue started", slog.Int("periodic_tasks", len(m.tasks)))
	return nil
}

// Stop shuts the queue down, waiting for in-flight jobs to finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}
	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("queue: stop client: %w", err)
	}
	m.started = false
	m.logger.Info("queue stopped")
	return nil
}

type sendWorker struct {
	river.WorkerDefaults[SendArgs]
	dispatcher Dispatcher
	logger     *slog.Logger
}

func (w *sendWorker) Work(ctx context.Context, job *river.Job[SendArgs]) error {
	w.logger.DebugContext(ctx, "processing queued send",
		slog.String("log_uuid", job.Args.LogUUID),
		slog.Int("attempt", job.Attempt),
	)
	if err := w.dispatcher.DispatchQueued(ctx, job.Args.LogUUID); err != nil {
		w.logger.ErrorContext(ctx, "queued send failed",
			slog.String("log_uuid", job.Args.LogUUID),
			slog.Int("attempt", job.Attempt),
			slog.Any("error", err),
		)
		return err
	}
	return nil
}

type periodicWorker struct {
	river.WorkerDefaults[periodicArgs]
	manager *Manager
	logger  *slog.Logger
}

func (w *periodicWorker) Work(ctx context.Context, job *river.Job[periodicArgs]) error {
	run, ok := w.manager.tasks[job.Args.TaskName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, job.Args.TaskName)
	}

	started := time.Now()
	if err := run(ctx); err != nil {
		w.logger.ErrorContext(ctx, "periodic task failed",
			slog.String("task", job.Args.TaskName),
			slog.Any("error", err),
		)
		return err
	}
	w.logger.DebugContext(ctx, "periodic task completed",
		slog.String("task", job.Args.TaskName),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

type cronScheduleAdapter struct {
	schedule cron.Schedule
}

func (a *cronScheduleAdapter) Next(current time.Time) time.Time {
	return a.schedule.Next(current)
}

func parseCronSchedule(expr string) (river.PeriodicSchedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{schedule: schedule}, nil
}
