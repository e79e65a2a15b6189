package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"salesdw/internal/logging"
	"salesdw/internal/metrics"
	"salesdw/internal/metrics/datadog"
	"salesdw/internal/pipeline"
	"salesdw/internal/storage"
)

// session is one command invocation against the store: a run id, an open
// repository, a runner and whatever metrics backend was installed.
type session struct {
	runID  string
	repo   storage.Repository
	runner *pipeline.Runner
	stop   []func()
}

// openSession validates the config, installs metrics, and opens the
// repository. Callers must call close.
func openSession(ctx context.Context) (*session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	s := &session{runID: uuid.NewString()}

	if err := s.setupMetrics(ctx); err != nil {
		s.close()
		return nil, err
	}

	repo, err := storage.New(ctx, cfg.StorageConfig())
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.repo = repo
	s.stop = append(s.stop, repo.Close)

	s.runner = &pipeline.Runner{
		Repo:         repo,
		Logger:       logging.NewPrinter(s.runID),
		StagingTable: cfg.StagingTable,
		Policy:       policy,
		BatchSize:    cfg.Ingest.BatchSize,
	}

	logging.Info().
		Str("run_id", s.runID).
		Str("storage", cfg.Storage).
		Str("staging_table", cfg.StagingTable).
		Str("merge_policy", policy.String()).
		Msg("Session opened")
	return s, nil
}

// setupMetrics installs the configured backend. A backend that fails to
// start is logged and metrics stay disabled.
func (s *session) setupMetrics(ctx context.Context) error {
	switch cfg.Metrics.Backend {
	case "", "none":
		logging.Debug().Msg("Metrics disabled")
		return nil

	case "datadog":
		tags := append(datadog.ParseTagsCSV(cfg.Metrics.Tags), "run_id:"+s.runID)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.Job,
			Tags:       tags,
			FlushEvery: cfg.Metrics.FlushEvery,
		})
		if err != nil {
			logging.Warn().Err(datadog.WrapInitErr(err)).Msg("Metrics disabled")
			return nil
		}
		metrics.SetBackend(b)
		s.stop = append(s.stop, func() {
			if err := b.Close(); err != nil {
				logging.Warn().Err(err).Msg("Datadog close/flush failed")
			}
			metrics.SetBackend(nil)
		})
		logging.Info().Str("job", cfg.Metrics.Job).Strs("tags", tags).Msg("Datadog metrics enabled")
		return nil

	default:
		return fmt.Errorf("unknown metrics backend %q", cfg.Metrics.Backend)
	}
}

// close releases resources in reverse order of acquisition.
func (s *session) close() {
	for i := len(s.stop) - 1; i >= 0; i-- {
		s.stop[i]()
	}
	s.stop = nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
