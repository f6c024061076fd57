package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-procure/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
	Cron        []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	logger := cfg.Logger
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueCritical: 3,
			QueueDefault:  1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("job failed", slog.String("type", task.Type()), slog.Int("retry", retried), slog.Int("max_retry", maxRetry), slog.Any("error", err))
		}),
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// retryDelay backs propagation retries off linearly up to ten minutes.
func retryDelay(n int, err error, task *asynq.Task) time.Duration {
	if task.Type() != TaskRequisitionPropagate {
		return asynq.DefaultRetryDelayFunc(n, err, task)
	}
	delay := time.Duration(n+1) * 30 * time.Second
	if delay > 10*time.Minute {
		delay = 10 * time.Minute
	}
	return delay
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client:    asynq.NewClient(redisOpts),
		inspector: asynq.NewInspector(redisOpts),
		logger:    logger,
	}
}

const propagationDelay = 30 * time.Second

// EnqueuePropagation schedules a replay of the outbox row. A replay still
// waiting or running for the same row is left in place; one that exhausted
// its retries and was archived is put back to pending.
func (c *Client) EnqueuePropagation(ctx context.Context, outboxID int64) error {
	task, err := NewPropagateTask(outboxID)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(propagationDelay))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return c.reviveFinished(ctx, outboxID, task)
	}
	if err != nil {
		return fmt.Errorf("jobs: enqueue propagation %d: %w", outboxID, err)
	}
	c.logger.Info("propagation retry enqueued", slog.Int64("outbox_id", outboxID), slog.String("task_id", info.ID))
	return nil
}

func (c *Client) reviveFinished(ctx context.Context, outboxID int64, task *asynq.Task) error {
	id := propagateTaskID(outboxID)
	info, err := c.inspector.GetTaskInfo(QueueCritical, id)
	switch {
	case errors.Is(err, asynq.ErrTaskNotFound):
		// Finished and removed between the two calls.
		return c.enqueueAgain(ctx, outboxID, task)
	case err != nil:
		return fmt.Errorf("jobs: inspect propagation %d: %w", outboxID, err)
	}

	switch info.State {
	case asynq.TaskStateArchived:
		if err := c.inspector.RunTask(QueueCritical, id); err != nil {
			return fmt.Errorf("jobs: revive propagation %d: %w", outboxID, err)
		}
		c.logger.Warn("archived propagation revived",
			slog.Int64("outbox_id", outboxID),
			slog.Int("retried", info.Retried),
			slog.String("last_error", info.LastErr),
		)
		return nil
	case asynq.TaskStateCompleted:
		if err := c.inspector.DeleteTask(QueueCritical, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return fmt.Errorf("jobs: drop completed propagation %d: %w", outboxID, err)
		}
		return c.enqueueAgain(ctx, outboxID, task)
	default:
		return nil
	}
}

func (c *Client) enqueueAgain(ctx context.Context, outboxID int64, task *asynq.Task) error {
	_, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(propagationDelay))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("jobs: enqueue propagation %d: %w", outboxID, err)
	}
	return nil
}

// Enqueue submits an arbitrary prepared task.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, opts...)
}

// Close releases client resources.
func (c *Client) Close() error {
	return errors.Join(c.client.Close(), c.inspector.Close())
}

// QueueReader is the inspector surface used by the health endpoint.
type QueueReader interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector QueueReader
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector QueueReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Retry     int    `json:"retry"`
	Scheduled int    `json:"scheduled"`
	Archived  int    `json:"archived"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	queues := []string{QueueCritical, QueueDefault}
	out := make([]queueHealth, 0, len(queues))
	for _, name := range queues {
		stats := queueHealth{Queue: name}
		if h.inspector != nil {
			info, err := h.inspector.GetQueueInfo(name)
			if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
				h.logger.Warn("jobs health", slog.String("queue", name), slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable), "queue inspection failed")
				return
			}
			if info != nil {
				stats.Pending = info.Pending
				stats.Retry = info.Retry
				stats.Scheduled = info.Scheduled
				stats.Archived = info.Archived
			}
		}
		out = append(out, stats)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"queues": out})
}
