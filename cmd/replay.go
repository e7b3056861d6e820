// SPDX-License-Identifier: MIT
package cmd

import (
	"github.com/spf13/cobra"

	"stomp/internal/config"
	"stomp/internal/replay"
	"stomp/internal/transport"
)

type replayOptions struct {
	motionPath string
	audioPath  string
	tempo      float64
	frames     int
	report     bool
}

func newReplayCommand(a *app) *cobra.Command {
	var opts replayOptions

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Score a recorded session offline",
		Long: `Replay a motion CSV (seconds,x,y,z per line) and optionally a WAV recording
through a fresh detector, in time order, and print the stomps it accepts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("tempo") {
				opts.tempo = cfg.Detector.InitialTempoBPM
			}
			if !cmd.Flags().Changed("frames") {
				opts.frames = cfg.Audio.FramesPerBuffer
			}

			samples, err := replay.LoadMotionFile(opts.motionPath)
			if err != nil {
				return err
			}
			var track *replay.AudioTrack
			if opts.audioPath != "" {
				if track, err = replay.LoadWAVFile(opts.audioPath, opts.frames); err != nil {
					return err
				}
			}

			var reporter transport.Reporter
			if opts.report {
				if reporter, err = buildReporter(cfg.Reporters); err != nil {
					return err
				}
			}

			summary, err := replay.Run(cmd.Context(), samples, track, replay.Options{
				TempoBPM:  opts.tempo,
				Reporter:  reporter,
				QueueSize: cfg.Detector.NotifyQueueSize,
			})
			if err != nil {
				return err
			}
			summary.Print(cmd.OutOrStdout())
			return nil
		},
	}

	replayCmd.Flags().StringVarP(&opts.motionPath, "motion", "m", "", "Motion CSV file")
	replayCmd.Flags().StringVarP(&opts.audioPath, "audio", "a", "", "WAV recording of the same session")
	replayCmd.Flags().Float64VarP(&opts.tempo, "tempo", "t", config.DefaultInitialTempoBPM,
		"Tempo in BPM assumed until kicks have been heard")
	replayCmd.Flags().IntVarP(&opts.frames, "frames", "b", config.DefaultFramesPerBuffer,
		"Frames per analysed audio buffer")
	replayCmd.Flags().BoolVar(&opts.report, "report", false,
		"Send accepted stomps to the configured reporters")
	_ = replayCmd.MarkFlagRequired("motion")
	return replayCmd
}
