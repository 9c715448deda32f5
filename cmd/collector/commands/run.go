package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jupiterone/integration-sdk-go/common/logger"
	"github.com/jupiterone/integration-sdk-go/common/models"
	"github.com/jupiterone/integration-sdk-go/config"
	"github.com/jupiterone/integration-sdk-go/engine"
	"github.com/jupiterone/integration-sdk-go/synchronization"
)

func init() {
	RootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:           "run",
	Short:         "Execute the registered step catalog and synchronize its output",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		values, err := config.Load(configSpec)
		if err != nil {
			return errors.Wrap(err, "error loading configuration")
		}

		logFactory := newLogFactory()
		log := logFactory("Collector")

		steps := StepCatalog()
		if len(steps) == 0 {
			return fmt.Errorf("no steps registered: build a collector binary that supplies one via StepCatalog")
		}

		if err := os.MkdirAll(Global.StorageDir, 0o755); err != nil {
			return fmt.Errorf("error making storage directory %q: %w", Global.StorageDir, err)
		}

		client := synchronization.NewClient(values.String("api_base_url"), &http.Client{Timeout: 30 * time.Second})
		events := synchronization.NewEventQueue(func(subsystem, name string, fields logger.Fields) {
			log.WithFields(fields).Infof("%s: %s", subsystem, name)
		})
		pipeline := synchronization.NewPipeline(client, synchronization.DefaultRetryConfig(), events, logFactory("SyncPipeline"))

		var job *models.SynchronizationJob
		var uploadSinkFactory func(step models.StepID) engine.UploadSink
		if !values.Bool("skip_synchronization") {
			job, err = pipeline.Initiate(ctx, values.String("integration_instance_id"))
			if err != nil {
				return errors.Wrap(err, "error initiating synchronization job")
			}
			uploadSinkFactory = func(step models.StepID) engine.UploadSink {
				return synchronization.NewJobUploader(ctx, pipeline, job)
			}
		}

		scheduler, err := engine.NewScheduler(steps, nil, engine.SchedulerConfig{
			StorageDir:        Global.StorageDir,
			LogFactory:        logFactory,
			UploadSinkFactory: uploadSinkFactory,
		})
		if err != nil {
			return errors.Wrap(err, "error constructing scheduler")
		}

		results, runErr := scheduler.Run(ctx)
		for _, result := range results {
			log.Infof("step %q finished with status %q", result.ID, result.Status)
		}

		if job != nil {
			if runErr != nil {
				if abortErr := pipeline.Abort(ctx, job, runErr.Error()); abortErr != nil {
					log.Warnf("error aborting synchronization job %q: %v", job.ID, abortErr)
				}
			} else if _, finalizeErr := pipeline.Finalize(ctx, job, models.PartialDatasets{}); finalizeErr != nil {
				runErr = finalizeErr
			}
			events.Wait()
		}

		if runErr != nil {
			return runErr
		}
		return nil
	},
}
