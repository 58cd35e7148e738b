package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptime-induestries/uiotest/internal/tester"
	"github.com/uptime-induestries/uiotest/pkg/eventbus"
	"github.com/uptime-induestries/uiotest/pkg/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	if !debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zap.Must(cfg.Build()).With(zap.String("app", "uiotest"))
}

func run(cmd *cobra.Command, v *viper.Viper, cfg tester.Config) error {
	if v.GetBool("daemonize") && !isDaemonChild() {
		pid, err := daemonize()
		if err != nil {
			return &ForkError{Err: err}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "UIO test daemon starting with PID: %d\n", pid)
		return nil
	}

	var wg sync.WaitGroup

	zapLogger := newLogger(v.GetBool("debug"))
	defer func() { _ = zapLogger.Sync() }()
	_ = zap.ReplaceGlobals(zapLogger.With(zap.String("scope", "global")))
	baseCtx := log.IntoContext(cmd.Context(), zapLogger)

	ctx, cancelCtx := context.WithCancelCause(baseCtx)
	defer cancelCtx(context.Canceled)

	bus := eventbus.New()

	// only SIGINT stops the tester; SIGKILL cannot be intercepted
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
		case sig := <-sigs:
			cancelCtx(&signalError{sig: sig})
		}
	}()

	// the health service has to subscribe before the tester publishes its first phase
	if addr := v.GetString("grpc_addr"); addr != "" {
		if err := serveGRPC(ctx, &wg, cancelCtx, addr, bus); err != nil {
			cancelCtx(err)
		}
	}

	if addr := v.GetString("metrics_addr"); addr != "" {
		serveMetrics(ctx, &wg, cancelCtx, addr)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		err := tester.NewTester(cfg, tester.WithEventBus(bus)).Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.FromContext(ctx).Error("Failed to run tester", zap.Error(err))
			cancelCtx(err)
		}
		// the tester never returns on its own without an error
		cancelCtx(context.Canceled)
	}()

	wg.Wait()

	cause := context.Cause(ctx)
	var sigErr *signalError
	if errors.As(cause, &sigErr) {
		log.FromContext(ctx).Info("Exiting", zap.Stringer("signal", sigErr.sig))
		return nil
	}
	if cause != nil && !errors.Is(cause, context.Canceled) {
		log.FromContext(ctx).Error("Exiting", zap.Error(cause))
		return &loggedError{err: cause}
	}
	log.FromContext(ctx).Info("Exiting")
	return nil
}

func serveMetrics(ctx context.Context, wg *sync.WaitGroup, cancelCtx context.CancelCauseFunc, addr string) {
	promHandler := http.NewServeMux()
	promHandler.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: promHandler, ReadHeaderTimeout: 10 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.FromContext(ctx).Error("Failed to start prometheus server", zap.Error(err))
			cancelCtx(err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.FromContext(ctx).Error("Failed to shutdown prometheus server", zap.Error(err))
		}
	}()
}

func serveGRPC(ctx context.Context, wg *sync.WaitGroup, cancelCtx context.CancelCauseFunc, addr string, bus eventbus.EventBus) error {
	listener, err := listen(addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthService := tester.NewHealthServiceFor(bus)
	healthService.Register(grpcServer)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = healthService.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.FromContext(ctx).Info("Starting grpc server", zap.String("address", addr))
		if err := grpcServer.Serve(listener); err != nil {
			log.FromContext(ctx).Error("Failed to start grpc server", zap.Error(err))
			cancelCtx(err)
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			grpcServer.Stop()
		}
	}()

	return nil
}

// listen accepts unix:///path/to/socket or host:port
func listen(addr string) (net.Listener, error) {
	path, ok := strings.CutPrefix(addr, "unix://")
	if !ok {
		return net.Listen("tcp", addr)
	}

	// remove a stale socket left behind by a previous run
	if fi, err := os.Stat(path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(path); err != nil {
			return nil, err
		}
	}
	return net.Listen("unix", path)
}
