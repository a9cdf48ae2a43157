// Command matregd serves the material registry and its content archive over gRPC.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"xdao.co/matreg/config"
	"xdao.co/matreg/logging"
	"xdao.co/matreg/rpc"
	"xdao.co/matreg/storage/backends"
	"xdao.co/matreg/storage/grpcstore"

	_ "xdao.co/matreg/storage/ipfs"
	_ "xdao.co/matreg/storage/localfs"
	_ "xdao.co/matreg/storage/memstore"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	var (
		configPath    string
		listen        string
		metricsListen string
		listBackends  bool
	)
	cmd := &cobra.Command{
		Use:           "matregd",
		Short:         "Material registry daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listBackends {
				for _, b := range backends.List(backends.UsageDaemon) {
					fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
				}
				return nil
			}
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Server.Listen = listen
			}
			if cmd.Flags().Changed("metrics-listen") {
				cfg.Server.MetricsListen = metricsListen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, errOut)
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
	f.StringVar(&listen, "listen", "", "gRPC listen address (overrides server.listen)")
	f.StringVar(&metricsListen, "metrics-listen", "", "Prometheus /metrics address (overrides server.metrics_listen)")
	f.BoolVar(&listBackends, "list-backends", false, "List supported archive backends and exit")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Parse("")
	}
	return config.Load(path)
}

func serve(ctx context.Context, cfg config.Config, errOut io.Writer) error {
	logger := logging.New(errOut, "matregd", cfg.Logging(logging.ProfileRuntime))

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, closeFn, err := openService(ctx, cfg, logger, promReg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Error().Err(err).Msg("close")
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return err
	}

	var opts []grpc.ServerOption
	if n := cfg.Server.MaxMsgBytes; n > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(n), grpc.MaxSendMsgSize(n))
	}
	srv := grpc.NewServer(opts...)
	rpc.RegisterRegistryServer(srv, &rpc.Server{Backend: svc})
	grpcstore.RegisterArchiveServer(srv, &grpcstore.Server{Store: svc.Archive()})

	var metricsSrv *http.Server
	if cfg.Server.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(shutdownCtx)
			cancel()
		}
		srv.GracefulStop()
	}()

	logger.Info().
		Str("listen", lis.Addr().String()).
		Str("metrics", cfg.Server.MetricsListen).
		Str("journal", cfg.Journal.Driver).
		Msg("matregd listening")
	return srv.Serve(lis)
}
