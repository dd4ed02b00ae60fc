package assistant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/classify"
	"github.com/dvloznov/ledger-assistant/internal/jobs"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
)

// NewJobHandler builds the worker-side handler for the background jobs
// the assistant publishes. Either collaborator may be nil; the matching
// job type then completes as a no-op.
func NewJobHandler(store ledger.Store, retriever *retrieval.Retriever, suggester *classify.Suggester, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.Job) error {
		switch job.Type {
		case jobs.JobTypeIndexItem:
			if retriever != nil {
				retriever.Warm(ctx, job.Text)
			}
			return nil
		case jobs.JobTypeTrainClassifier:
			if suggester == nil {
				return nil
			}
			if err := suggester.TrainFromStore(ctx, store, job.UserID); err != nil {
				log.Error().Err(err).Str("user_id", job.UserID).Msg("Classifier training failed")
				return err
			}
			return nil
		}
		return fmt.Errorf("assistant.JobHandler: unknown job type %q", job.Type)
	}
}
