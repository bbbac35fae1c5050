package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/alphabill-org/partdist/compute"
	"github.com/alphabill-org/partdist/hybridtime"
	"github.com/alphabill-org/partdist/logger"
	"github.com/alphabill-org/partdist/partitions"
	"github.com/alphabill-org/partdist/rpc"
)

type serveFlags struct {
	storeFlags
	Address      string
	MaxBodyBytes int64
	MaxJobQueue  int
	JobRetention time.Duration
}

func newServeCmd(config *baseConfiguration) *cobra.Command {
	flags := &serveFlags{storeFlags: storeFlags{base: config}}
	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "Starts REST API server for the chain store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}
	flags.addStoreFlags(cmd, false)
	cmd.Flags().StringVar(&flags.Address, "address", "localhost:8080", "address to listen for REST API requests")
	cmd.Flags().Int64Var(&flags.MaxBodyBytes, "max-body", rpc.MaxBodySize, "maximum size of the request body in bytes")
	cmd.Flags().IntVar(&flags.MaxJobQueue, "max-job-queue", 10, "maximum number of jobs waiting for execution")
	cmd.Flags().DurationVar(&flags.JobRetention, "job-retention", time.Hour, "how long the state of finished jobs is kept")
	return cmd
}

func serve(ctx context.Context, flags *serveFlags) (err error) {
	if flags.JobRetention <= 0 {
		return fmt.Errorf("job retention must be positive, got %s", flags.JobRetention)
	}
	obs := flags.base.observe
	log := obs.Logger()

	store, closeDB, err := openChainStore(flags.base, flags.DBFile)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeDB()) }()

	jobs, err := compute.NewRegistry(flags.MaxJobQueue, obs)
	if err != nil {
		return fmt.Errorf("creating job registry: %w", err)
	}

	server := rpc.NewRESTServer(flags.Address, flags.MaxBodyBytes, obs, log,
		rpc.PartitionEndpoints(store, hybridtime.NewClock(), log),
		rpc.JobEndpoints(jobs, log),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.InfoContext(ctx, fmt.Sprintf("REST API server starting on %s", flags.Address))
		err := httpsrv.Run(ctx, *server, httpsrv.ShutdownTimeout(5*time.Second))
		log.InfoContext(ctx, "REST API server exited", logger.Error(err))
		return err
	})

	g.Go(func() error {
		return jobs.Run(ctx, 1, func(job *compute.Job) error {
			return runJob(job, store)
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(flags.JobRetention / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case now := <-ticker.C:
				if n := jobs.Prune(now.Add(-flags.JobRetention)); n > 0 {
					log.DebugContext(ctx, fmt.Sprintf("pruned %d finished jobs", n))
				}
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runJob(job *compute.Job, store *partitions.ChainStore) error {
	switch job.Name {
	case rpc.JobVerifyChains:
		return store.Verify(job.Context)
	default:
		return fmt.Errorf("unknown job %q", job.Name)
	}
}
