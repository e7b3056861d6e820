// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stomp/internal/audio"
	"stomp/internal/config"
	applog "stomp/internal/log"
	"stomp/internal/motion"
	"stomp/internal/stomp"
	"stomp/internal/tui"
	"stomp/pkg/build"
)

// defaultTUILogFile receives the log while the monitor owns the terminal.
const defaultTUILogFile = "stompd.log"

// capture is an audio backend that can also record what it hears.
type capture interface {
	stomp.AudioSource
	StartRecording(path string, bitDepth int) error
	StopRecording() (string, error)
	Close() error
}

type runOptions struct {
	tempo   float64
	record  bool
	withTUI bool
	logFile string
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Detect stomps live from the configured motion and audio sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("tempo") {
				cfg.Detector.InitialTempoBPM = opts.tempo
			}
			if cmd.Flags().Changed("record") {
				cfg.Recording.Enabled = opts.record
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDetection(ctx, cfg, opts)
		},
	}

	runCmd.Flags().Float64VarP(&opts.tempo, "tempo", "t", config.DefaultInitialTempoBPM,
		"Tempo in BPM assumed until kicks have been heard")
	runCmd.Flags().BoolVarP(&opts.record, "record", "r", false,
		"Record the audio input to the recording directory")
	runCmd.Flags().BoolVar(&opts.withTUI, "tui", false,
		"Show the live monitor instead of periodic log summaries")
	runCmd.Flags().StringVar(&opts.logFile, "log-file", "",
		fmt.Sprintf("Write the log to this file (defaults to %s with --tui)", defaultTUILogFile))
	return runCmd
}

func runDetection(ctx context.Context, cfg *config.Config, opts runOptions) (err error) {
	log := applog.Component("run")

	logFile := opts.logFile
	if logFile == "" && opts.withTUI {
		logFile = defaultTUILogFile
	}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		applog.SetOutput(f)
		defer func() {
			applog.SetOutput(os.Stderr)
			f.Close()
		}()
	}

	motionSource := buildMotion(cfg.Motion)

	audioSource, closeAudio, err := buildAudio(cfg.Audio)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeAudio()) }()

	reporter, err := buildReporter(cfg.Reporters)
	if err != nil {
		return err
	}

	detCfg := stomp.Config{
		Motion:    motionSource,
		Reporter:  reporter,
		QueueSize: cfg.Detector.NotifyQueueSize,
		Workers:   cfg.Detector.NotifyWorkers,
	}
	if audioSource != nil {
		detCfg.Audio = audioSource
	}
	det := stomp.NewDetector(detCfg)
	defer func() { err = errors.Join(err, det.Close()) }()

	if err := det.Start(cfg.Detector.InitialTempoBPM); err != nil {
		return err
	}

	if cfg.Recording.Enabled && audioSource != nil {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create recording directory: %w", err)
		}
		path := audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err := audioSource.StartRecording(path, cfg.Recording.BitDepth); err != nil {
			return err
		}
		log.Infof("recording to %s", path)
		defer func() {
			saved, recErr := audioSource.StopRecording()
			if recErr != nil {
				err = errors.Join(err, recErr)
				return
			}
			log.Infof("recording saved to %s", saved)
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if opts.withTUI {
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, build.Get().Name, det.Snapshot)
		})
	} else if cfg.Detector.StatsInterval > 0 {
		g.Go(func() error {
			logStats(gctx, det, cfg.Detector.StatsInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Infof("shutting down")
		return nil
	})

	return g.Wait()
}

// buildMotion returns the configured motion source. With no source the
// detector refuses to start, as on a host without motion sensing.
func buildMotion(mc config.MotionConfig) stomp.MotionSource {
	if mc.Source == config.MotionSerial {
		return motion.NewSerialIMU(mc.SerialPort, mc.BaudRate, mc.ReadTimeout)
	}
	none := motion.NewPush()
	none.SetAvailable(false)
	return none
}

// buildAudio opens the configured capture backend. The returned function
// releases it; it is never nil.
func buildAudio(ac config.AudioConfig) (capture, func() error, error) {
	switch ac.Backend {
	case config.BackendPortAudio:
		if err := audio.Initialize(); err != nil {
			return nil, nil, err
		}
		engine, err := audio.NewEngine(ac)
		if err != nil {
			return nil, nil, errors.Join(err, audio.Terminate())
		}
		return engine, func() error {
			return errors.Join(engine.Close(), audio.Terminate())
		}, nil

	case config.BackendMalgo:
		m := audio.NewMalgoCapture(ac)
		return m, m.Close, nil

	default:
		return nil, func() error { return nil }, nil
	}
}

func logStats(ctx context.Context, det *stomp.Detector, every time.Duration) {
	log := applog.Component("stats")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := det.Snapshot()
			log.With(applog.Fields{
				"stomps":    s.Accepted,
				"rate":      fmt.Sprintf("%.0f/h", s.RatePerHour),
				"tempo":     s.Tempo.String(),
				"threshold": fmt.Sprintf("%.2f", s.Threshold),
				"dropped":   s.Dropped,
				"failed":    s.Failed,
			}).Infof("session %s", s.Elapsed.Round(time.Second))
		}
	}
}
