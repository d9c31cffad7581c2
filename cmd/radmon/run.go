package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banshee-data/radmon-relay/internal/acquisition"
	"github.com/banshee-data/radmon-relay/internal/api"
	"github.com/banshee-data/radmon-relay/internal/config"
	"github.com/banshee-data/radmon-relay/internal/controller"
	"github.com/banshee-data/radmon-relay/internal/device"
	"github.com/banshee-data/radmon-relay/internal/fsutil"
	"github.com/banshee-data/radmon-relay/internal/httputil"
	"github.com/banshee-data/radmon-relay/internal/sample"
	"github.com/banshee-data/radmon-relay/internal/timeutil"
	"github.com/banshee-data/radmon-relay/internal/upload"
	"github.com/banshee-data/radmon-relay/internal/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Acquire counts and upload them to radmon.org",
	Long: `Open the counter, average its readings and submit one sample to
radmon.org per upload interval. Runs until interrupted (Ctrl+C) or SIGTERM.

A wrong user name or password stops the relay with exit status 1, as does
any serial port failure. Failed uploads are logged and skipped.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addConfigFlag(runCmd)
	runCmd.Flags().String("listen", "", "status server address, e.g. 127.0.0.1:8080 (overrides config)")
}

func runRun(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(fsutil.OSFileSystem{}, path)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("radmon-relay %s starting, protocol %s", version.Version, cfg.Protocol)
	r := newRelay(cfg, cfg.DeviceConfig(), httputil.NewStandardClient(nil), timeutil.RealClock{})
	if err := r.run(ctx); err != nil {
		log.Printf("relay stopped: %v", err)
		return err
	}
	log.Printf("graceful shutdown complete")
	return nil
}

// relay wires one acquisition loop, its controller and the optional status
// server together.
type relay struct {
	loop   *acquisition.Loop
	ctrl   *controller.Controller
	status *api.Server
	listen string
}

func newRelay(cfg *config.Config, dev device.Config, client httputil.HTTPClient, clock timeutil.Clock) *relay {
	dev.Clock = clock
	agg := sample.NewAggregator(clock)
	loop := acquisition.New(dev, agg, nil)
	ctrl := controller.New(loop, agg, upload.New(cfg.UploadConfig(), client), controller.Options{
		UploadInterval: cfg.UploadInterval.D(),
		RetryInterval:  cfg.RetryInterval.D(),
		Clock:          clock,
	})
	return &relay{
		loop:   loop,
		ctrl:   ctrl,
		status: api.NewServer(loop, ctrl, clock),
		listen: cfg.Listen,
	}
}

// run blocks until the controller returns. The status server, if any, is
// shut down afterwards.
func (r *relay) run(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if r.listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.status.Serve(serveCtx, r.listen); err != nil {
				log.Printf("%v", err)
			}
		}()
	}

	err := r.ctrl.Run(ctx)
	cancel()
	wg.Wait()
	return err
}
