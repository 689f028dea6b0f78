package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/transcript-sync/internal/render"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

// playOptions drives a replay against a simulated clock
type playOptions struct {
	From     float64
	Rate     float64
	Tick     time.Duration
	Resolver *resolver.Resolver
	Renderer render.Renderer
}

func newPlayCmd() *cobra.Command {
	var (
		format  string
		pastEnd string
		from    float64
		rate    float64
		tick    time.Duration
		plain   bool
	)

	cmd := &cobra.Command{
		Use:   "play <transcript>",
		Short: "Replay a transcript with live word highlighting",
		Long: `Replay a transcript in the terminal against a simulated media clock,
printing a line each time the highlighted word changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rate <= 0 {
				return fmt.Errorf("--rate must be positive, got %v", rate)
			}
			if tick <= 0 {
				return fmt.Errorf("--tick must be positive, got %v", tick)
			}
			policy, err := parsePolicy(pastEnd)
			if err != nil {
				return err
			}
			tr, err := loadTranscriptFile(args[0], format)
			if err != nil {
				return err
			}

			var renderer render.Renderer = render.NewTerminal()
			if plain {
				renderer = render.NewBrackets()
			}

			return runPlay(cmd.Context(), cmd.OutOrStdout(), tr, playOptions{
				From:     from,
				Rate:     rate,
				Tick:     tick,
				Resolver: resolver.New(policy),
				Renderer: renderer,
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "auto", "transcript format: auto, deepgram, native")
	cmd.Flags().StringVar(&pastEnd, "past-end", "hold", "after the last sentence: wrap, hold, none")
	cmd.Flags().Float64Var(&from, "from", 0, "start position in seconds")
	cmd.Flags().Float64Var(&rate, "rate", 1.0, "playback rate")
	cmd.Flags().DurationVar(&tick, "tick", 100*time.Millisecond, "clock sample interval")
	cmd.Flags().BoolVar(&plain, "plain", false, "mark the word with brackets instead of colour")
	return cmd
}

// runPlay samples a simulated clock every Tick until the transcript ends or
// ctx is cancelled
func runPlay(ctx context.Context, w io.Writer, tr *transcript.Transcript, opts playOptions) error {
	ticker := time.NewTicker(opts.Tick)
	defer ticker.Stop()

	end := tr.Duration()
	step := opts.Tick.Seconds() * opts.Rate

	at := opts.From
	prior := 0
	var last *resolver.Result
	for {
		result, next := opts.Resolver.Resolve(tr, at, prior)
		prior = next

		if last == nil || !last.Equal(result) {
			fmt.Fprintf(w, "%8.2fs  %s\n", at, displayLine(opts.Renderer, result))
			last = &result
		}

		if at >= end {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		at += step
	}
}
