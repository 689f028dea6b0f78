package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/render"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/rpc"
)

type resolveLine struct {
	Time      float64         `json:"time"`
	NextIndex int             `json:"next_index"`
	Result    resolver.Result `json:"result"`
}

func newResolveCmd() *cobra.Command {
	var (
		path    string
		format  string
		pastEnd string
		remote  string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "resolve <seconds>...",
		Short: "Print the sentence and word shown at each time",
		Long: `Resolve one or more media times against a transcript file, or against a
running server's gRPC endpoint with --remote. Times are resolved in order and
each call passes the previous sentence index as a hint.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (path == "") == (remote == "") {
				return fmt.Errorf("exactly one of --transcript or --remote is required")
			}

			times := make([]float64, len(args))
			for i, arg := range args {
				at, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("invalid time %q: %w", arg, err)
				}
				times[i] = at
			}

			var resolve func(at float64, prior int) (resolver.Result, int, error)
			if remote != "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				client, err := rpc.NewClient(cmd.Context(), remote, cfg)
				if err != nil {
					return err
				}
				defer client.Close()
				resolve = func(at float64, prior int) (resolver.Result, int, error) {
					return client.Resolve(cmd.Context(), at, prior)
				}
			} else {
				policy, err := parsePolicy(pastEnd)
				if err != nil {
					return err
				}
				tr, err := loadTranscriptFile(path, format)
				if err != nil {
					return err
				}
				r := resolver.New(policy)
				resolve = func(at float64, prior int) (resolver.Result, int, error) {
					result, next := r.Resolve(tr, at, prior)
					return result, next, nil
				}
			}

			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			brackets := render.NewBrackets()

			prior := 0
			for _, at := range times {
				result, next, err := resolve(at, prior)
				if err != nil {
					return err
				}
				prior = next

				if asJSON {
					if err := enc.Encode(resolveLine{Time: at, NextIndex: next, Result: result}); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(out, "%8.3fs  %s\n", at, displayLine(brackets, result))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "transcript", "t", "", "transcript file (Deepgram JSON, native JSON or YAML)")
	cmd.Flags().StringVarP(&format, "format", "f", "auto", "transcript format: auto, deepgram, native")
	cmd.Flags().StringVar(&pastEnd, "past-end", "wrap", "after the last sentence: wrap, hold, none")
	cmd.Flags().StringVar(&remote, "remote", "", "resolve through a server's gRPC address instead of a file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON result per line")
	return cmd
}

// displayLine renders r, with a placeholder when nothing is selected
func displayLine(r render.Renderer, result resolver.Result) string {
	if !result.HasSentence() {
		return "(no sentence)"
	}
	return r.Render(result)
}
