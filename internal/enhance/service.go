package enhance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"enhancebot/internal/domain"
	"enhancebot/internal/infra"
	"enhancebot/internal/metrics"
	"enhancebot/internal/providers/remini"
)

// RemoteJobs is the create/upload/process surface of the enhancement service.
type RemoteJobs interface {
	CreateTask(ctx context.Context, req remini.CreateTaskRequest) (*remini.Task, error)
	Upload(ctx context.Context, target remini.UploadTarget, data []byte) error
	Process(ctx context.Context, taskID string) error
}

// StatusPoller drives a created task to a terminal state.
type StatusPoller interface {
	Poll(ctx context.Context, taskID string) (*remini.PollResult, error)
}

// Assets owns the per-job temporary file.
type Assets interface {
	Acquire(identifier string) (string, error)
	Release(path string) error
}

// Source writes the inbound photo bytes to dst.
type Source interface {
	Fetch(ctx context.Context, fileRef, dst string) error
}

// Recipient identifies the conversation a job reports back to.
type Recipient struct {
	ChatID int64
	Locale string
}

// Notifier delivers progress and the single outcome message for a job.
// Started is informational; exactly one of Succeeded or Failed follows.
type Notifier interface {
	Started(ctx context.Context, to Recipient) error
	Succeeded(ctx context.Context, to Recipient, resultURL string) error
	Failed(ctx context.Context, to Recipient, cause error) error
}

// Request describes one inbound photo.
type Request struct {
	Recipient    Recipient
	AssetKey     string
	FileRef      string
	DeclaredSize int64
}

// Outcome is the terminal view of a job. Err is nil only on success.
type Outcome struct {
	Job *domain.EnhancementJob
	Err error
}

type Options struct {
	Remote    RemoteJobs
	Poller    StatusPoller
	Assets    Assets
	Source    Source
	Notifier  Notifier
	MaxBytes  int64
	Metrics   *metrics.Metrics
	Logger    *infra.Logger
	NotifyTTL time.Duration
}

// Service runs the enhancement workflow: fetch, fingerprint, create, upload,
// process, poll, notify, release.
type Service struct {
	remote    RemoteJobs
	poller    StatusPoller
	assets    Assets
	source    Source
	notifier  Notifier
	maxBytes  int64
	metrics   *metrics.Metrics
	logger    *infra.Logger
	notifyTTL time.Duration
	now       func() time.Time
}

func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Remote == nil:
		return nil, errors.New("enhance: remote client is required")
	case opts.Poller == nil:
		return nil, errors.New("enhance: poller is required")
	case opts.Assets == nil:
		return nil, errors.New("enhance: asset manager is required")
	case opts.Source == nil:
		return nil, errors.New("enhance: photo source is required")
	case opts.Notifier == nil:
		return nil, errors.New("enhance: notifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	notifyTTL := opts.NotifyTTL
	if notifyTTL <= 0 {
		notifyTTL = 15 * time.Second
	}
	return &Service{
		remote:    opts.Remote,
		poller:    opts.Poller,
		assets:    opts.Assets,
		source:    opts.Source,
		notifier:  opts.Notifier,
		maxBytes:  opts.MaxBytes,
		metrics:   opts.Metrics,
		logger:    logger,
		notifyTTL: notifyTTL,
		now:       time.Now,
	}, nil
}

// Enhance runs one job to completion. It always sends exactly one outcome
// notification and always releases the local asset, in that order.
func (s *Service) Enhance(ctx context.Context, req Request) Outcome {
	done := s.metrics.JobStarted()
	defer done()

	job := &domain.EnhancementJob{
		ID:          uuid.NewString(),
		ContentType: domain.ContentTypeJPEG,
		ToolChain:   domain.DefaultToolChain(),
		CreatedAt:   s.now(),
	}
	logger := s.logger.With().
		Str("job_id", job.ID).
		Int64("chat_id", req.Recipient.ChatID).
		Str("asset_key", req.AssetKey).
		Logger()

	path, err := s.assets.Acquire(req.AssetKey)
	if err != nil {
		return s.finish(ctx, &logger, req.Recipient, job, fmt.Errorf("enhance: acquire asset: %w", err))
	}
	defer func() {
		if err := s.assets.Release(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("enhance: temporary asset cleanup failed")
		}
	}()

	err = s.run(ctx, &logger, req, path, job)
	return s.finish(ctx, &logger, req.Recipient, job, err)
}

func (s *Service) run(ctx context.Context, logger *infra.Logger, req Request, path string, job *domain.EnhancementJob) error {
	if s.maxBytes > 0 && req.DeclaredSize > s.maxBytes {
		return &domain.OversizeInputError{Size: req.DeclaredSize, Limit: s.maxBytes}
	}

	// Step 1: bring the photo bytes onto local disk.
	started := s.now()
	if err := s.source.Fetch(ctx, req.FileRef, path); err != nil {
		return fmt.Errorf("enhance: download photo: %w", err)
	}
	s.metrics.ObserveStep("download", started)

	// Step 2: fingerprint and enforce the limit on the real size.
	digest, data, err := FingerprintFile(path)
	if err != nil {
		return err
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return &domain.OversizeInputError{Size: int64(len(data)), Limit: s.maxBytes}
	}
	if err := s.notifier.Started(ctx, req.Recipient); err != nil {
		logger.Warn().Err(err).Msg("enhance: progress notification failed")
	}
	job.ContentDigest = digest
	job.Status = domain.JobStatusCreated

	// Step 3: create the remote task.
	started = s.now()
	task, err := s.remote.CreateTask(ctx, remini.CreateTaskRequest{
		Tools:            wireTools(job.ToolChain),
		ImageMD5:         job.ContentDigest,
		ImageContentType: job.ContentType,
	})
	if err != nil {
		return err
	}
	s.metrics.ObserveStep("create", started)
	job.TaskID = task.ID
	job.Status = domain.JobStatusUploading
	logger.Info().Str("task_id", task.ID).Int("bytes", len(data)).Msg("enhance: task created")

	// Step 4: push the bytes to the one-time upload target.
	started = s.now()
	if err := s.remote.Upload(ctx, task.Upload, data); err != nil {
		return err
	}
	s.metrics.ObserveStep("upload", started)

	// Step 5: start processing.
	started = s.now()
	if err := s.remote.Process(ctx, task.ID); err != nil {
		return err
	}
	s.metrics.ObserveStep("process", started)
	job.Status = domain.JobStatusProcessing

	// Step 6: poll until the service reports a terminal state.
	started = s.now()
	result, err := s.poller.Poll(ctx, task.ID)
	if result != nil {
		s.metrics.ObservePollAttempts(result.Attempts)
	}
	if err != nil {
		return err
	}
	s.metrics.ObserveStep("poll", started)
	output := result.Status.OutputURL()
	if output == "" {
		return &domain.RemoteServiceError{Op: "poll", Err: domain.ErrMissingResult}
	}
	job.Status = domain.JobStatusCompleted
	job.ResultLocation = output
	return nil
}

// finish records the terminal state and sends the one outcome message.
func (s *Service) finish(ctx context.Context, logger *infra.Logger, to Recipient, job *domain.EnhancementJob, cause error) Outcome {
	job.FinishedAt = s.now()
	if cause != nil && job.Status != domain.JobStatusCompleted {
		job.Status = domain.JobStatusFailed
	}

	// The job context may already be cancelled on shutdown; the user still
	// gets an answer.
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTTL)
	defer cancel()

	var notifyErr error
	if cause == nil {
		notifyErr = s.notifier.Succeeded(notifyCtx, to, job.ResultLocation)
		logger.Info().Str("task_id", job.TaskID).Str("result", job.ResultLocation).Msg("enhance: job completed")
	} else {
		notifyErr = s.notifier.Failed(notifyCtx, to, cause)
		logger.Error().Err(cause).Str("task_id", job.TaskID).Str("status", string(job.Status)).Msg("enhance: job failed")
	}
	if notifyErr != nil {
		logger.Error().Err(notifyErr).Msg("enhance: outcome notification failed")
	}
	s.metrics.ObserveJob(outcomeLabel(cause))
	return Outcome{Job: job, Err: cause}
}

func outcomeLabel(err error) string {
	var (
		oversize *domain.OversizeInputError
		remote   *domain.RemoteServiceError
		timeout  *domain.PollTimeoutError
	)
	switch {
	case err == nil:
		return metrics.OutcomeSucceeded
	case errors.As(err, &oversize):
		return metrics.OutcomeOversize
	case errors.As(err, &timeout):
		return metrics.OutcomePollTimeout
	case errors.As(err, &remote):
		return metrics.OutcomeRemoteError
	default:
		return metrics.OutcomeFailed
	}
}

func wireTools(tools []domain.Tool) []remini.Tool {
	out := make([]remini.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, remini.Tool{Type: t.Type, Mode: t.Mode})
	}
	return out
}
