// ════════════════════════════════════════════════════════════════════════════════════════════════
// Mailbox Simulator - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Shared-Memory Master/Slave Mailbox
// Component: Simulator CLI & System Orchestration
//
// Description:
//   Runs a master and a slave over one mailbox image, each in its own pinned poll loop, and
//   pushes hi-pri and lo-pri traffic through the mailbox in both directions.
//
// Architecture:
//   - Phase 1: Configuration, image mapping, journal and metrics endpoint
//   - Phase 2: Producers, poll loops and completion watcher under one errgroup
//   - Phase 3: Shutdown, summary and image snapshot on stdout
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mailbox/config"
	"mailbox/control"
	"mailbox/debug"
	"mailbox/image"
	"mailbox/journal"
	"mailbox/metrics"
	"mailbox/runner"
	"mailbox/session"
	"mailbox/shmem"
)

// report summarises one simulator run.
type report struct {
	Master, Slave sideReport
	Snapshot      image.Snapshot
}

type sideReport struct {
	Sent, Received, Served uint64
	Progress               uint64
}

func (a *agent) report() sideReport {
	return sideReport{Sent: a.sent, Received: a.received, Served: a.served, Progress: a.ep.Progress()}
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// MAIN ORCHESTRATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

func main() {
	cfgPath := flag.String("config", "", "JSON configuration file")
	region := flag.String("region", "", "file mapped as the shared image (default: heap image)")
	messages := flag.Int("messages", -1, "hi-pri and lo-pri requests per side")
	reset := flag.Bool("reset", false, "slave requests a mailbox reset halfway through")
	journalPath := flag.String("journal", "", "SQLite journal path")
	metricsAddr := flag.String("metrics", "", "serve /metrics on this address")
	verbosity := flag.Int("v", -1, "log verbosity")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(2)
	}
	applyFlags(&cfg, *region, *messages, *reset, *journalPath, *metricsAddr, *verbosity)
	if err := cfg.Validate(); err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(2)
	}
	debug.SetVerbosity(cfg.Verbosity)

	if err := run(cfg); err != nil {
		debug.DropError("RUN", err)
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on the loaded configuration.
func applyFlags(cfg *config.Config, region string, messages int, reset bool, journalPath, metricsAddr string, verbosity int) {
	if region != "" {
		cfg.Region = region
	}
	if messages >= 0 {
		cfg.Messages = messages
	}
	if reset {
		cfg.Reset = true
	}
	if journalPath != "" {
		cfg.Journal = journalPath
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if verbosity >= 0 {
		cfg.Verbosity = verbosity
	}
}

// run performs one simulator run and prints the image snapshot.
func run(cfg config.Config) error {
	// PHASE 1: image, journal and metrics
	img, closeImage, err := openImage(cfg.Region)
	if err != nil {
		return err
	}
	defer closeImage()

	var j *journal.Journal
	if cfg.Journal != "" {
		if j, err = journal.Open(cfg.Journal); err != nil {
			return err
		}
		defer j.Close()
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				debug.DropError("METRICS", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PHASE 2: traffic
	start := time.Now()
	rep, err := simulate(ctx, cfg, img, j)
	if err != nil {
		return err
	}

	// PHASE 3: summary
	debug.DropMessage("DONE", "master sent "+strconv.FormatUint(rep.Master.Sent, 10)+
		", slave sent "+strconv.FormatUint(rep.Slave.Sent, 10)+
		" in "+time.Since(start).String())
	if j != nil {
		if n, err := j.Count(j.Session()); err == nil {
			debug.DropMessage("JOURNAL", strconv.Itoa(n)+" entries in session "+j.Session().String())
		}
	}

	out, err := rep.Snapshot.JSON()
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// openImage maps region, or allocates a heap image when region is empty.
func openImage(region string) (*image.Image, func(), error) {
	if region == "" {
		return image.New(), func() {}, nil
	}
	r, err := shmem.Map(region)
	if err != nil {
		return nil, nil, err
	}
	img, err := r.Image()
	if err != nil {
		r.Close()
		return nil, nil, err
	}
	return img, func() {
		if err := r.Flush(); err != nil {
			debug.DropError("FLUSH", err)
		}
		if err := r.Close(); err != nil {
			debug.DropError("UNMAP", err)
		}
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// SIMULATION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// simulate runs both sides over img until every request of both sides has
// been answered, ctx ends or a side fails.
func simulate(ctx context.Context, cfg config.Config, img *image.Image, j *journal.Journal) (report, error) {
	control.Reset()

	opts := session.DefaultOptions()
	opts.Log = debug.Logger()
	opts.LowPriorityBudget = cfg.LowPriorityBudget

	ma := newAgent(image.Master, j)
	sa := newAgent(image.Slave, j)
	ma.ep = session.NewMaster(img, ma, opts)
	sa.ep = session.NewSlave(img, sa, opts)
	if cfg.Reset && cfg.Messages > 0 {
		sa.resetAt = uint64(cfg.Messages)
	}

	// The master's first tick wipes whatever an earlier run left in the
	// region. It must land before the slave reads the master status.
	if err := ma.ep.Drive(); err != nil {
		return report{Snapshot: img.Snapshot()}, fmt.Errorf("%s: %w", ma.side, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ma.produce(gctx, cfg.Messages) })
	g.Go(func() error { return sa.produce(gctx, cfg.Messages) })

	for _, side := range []struct {
		a    *agent
		core int
	}{{ma, cfg.MasterCore}, {sa, cfg.SlaveCore}} {
		o := runner.DefaultOptions()
		o.Core = side.core
		o.SpinBudget = cfg.SpinBudget
		o.HotWindow = time.Duration(cfg.HotWindowMs) * time.Millisecond
		o.Cooldown = side.a.side == image.Master
		o.OnTick = side.a.tick

		a := side.a
		g.Go(func() error {
			control.ShutdownWG.Add(1)
			defer control.ShutdownWG.Done()
			if err := runner.Run(a.ep, o); err != nil {
				control.Shutdown()
				return fmt.Errorf("%s: %w", a.side, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer control.Shutdown()
		tick := time.NewTicker(time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-tick.C:
				if ma.finished.Load() && sa.finished.Load() {
					return nil
				}
			}
		}
	})

	err := g.Wait()
	control.ShutdownWG.Wait()

	rep := report{Master: ma.report(), Slave: sa.report(), Snapshot: img.Snapshot()}
	if err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}
