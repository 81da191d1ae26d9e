package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/GoSim-25-26J-441/mcfit-core/internal/fitd"
	"github.com/GoSim-25-26J-441/mcfit-core/internal/metrics"
	"github.com/GoSim-25-26J-441/mcfit-core/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fit daemon with its HTTP and gRPC APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), v.GetString("http-addr"), v.GetString("grpc-addr"), v.GetString("data-dir"))
		},
	}
	f := cmd.Flags()
	f.String("http-addr", ":8080", "HTTP listen address")
	f.String("grpc-addr", ":50051", "gRPC listen address")
	f.String("data-dir", "", "directory for result files and the fit journal (empty keeps everything in memory)")
	return cmd
}

func serve(ctx context.Context, httpAddr, grpcAddr, dataDir string) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	recorder := metrics.NewRecorder()
	jobs, closeJobs, err := openJobStore(dataDir)
	if err != nil {
		return err
	}
	defer closeJobs()
	executor := fitd.NewFitExecutor(jobs, dataDir, recorder)

	// TODO: configure TLS and authentication for the gRPC and HTTP listeners before
	// exposing the daemon outside a trusted network.
	grpcServer := fitd.NewGRPCServer(jobs)
	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           fitd.NewHTTPServer(jobs, executor, recorder).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("gRPC server error", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr, "data_dir", dataDir)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.GracefulStop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	if err := executor.Shutdown(shutdownCtx); err != nil {
		logger.Error("fits did not stop in time", "error", err)
		return err
	}
	return nil
}

// openJobStore journals fits under dataDir so they survive a restart; without a data
// directory the job store lives in memory only
func openJobStore(dataDir string) (*fitd.JobStore, func(), error) {
	if dataDir == "" {
		return fitd.NewJobStore(), func() {}, nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, err
	}
	journal, err := fitd.OpenJournal(filepath.Join(dataDir, "fits.db"))
	if err != nil {
		return nil, nil, err
	}
	jobs, err := fitd.NewJournaledJobStore(journal)
	if err != nil {
		journal.Close()
		return nil, nil, err
	}
	return jobs, func() {
		if err := journal.Close(); err != nil {
			logger.Warn("failed to close fit journal", "error", err)
		}
	}, nil
}
