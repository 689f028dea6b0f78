package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexiqai/transcript-sync/internal/observability"
	"github.com/lexiqai/transcript-sync/internal/resolver"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		pretty   bool
	)

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Resolve and replay word-level transcript highlighting",
		Long: `syncctl works with timed transcripts: it resolves media times to the
current sentence and word, replays a transcript against a simulated clock,
and fetches transcripts from Deepgram.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			observability.InitLoggerTo(cmd.ErrOrStderr(), logLevel, pretty)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&pretty, "pretty", true, "human-readable logs")

	cmd.AddCommand(newResolveCmd(), newPlayCmd(), newTranscribeCmd())
	return cmd
}

// loadTranscriptFile loads path, warning about rows that were dropped
func loadTranscriptFile(path, format string) (*transcript.Transcript, error) {
	f, err := transcript.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	tr, err := transcript.Load(path, f)
	if err != nil {
		return nil, err
	}

	if stats := tr.Stats(); stats.DroppedWords > 0 || stats.DroppedSentences > 0 {
		logger := observability.Component("syncctl")
		logger.Warn().
			Str("path", path).
			Int("dropped_words", stats.DroppedWords).
			Int("dropped_sentences", stats.DroppedSentences).
			Msg("Dropped malformed transcript rows")
	}
	return tr, nil
}

func parsePolicy(s string) (resolver.PastEndPolicy, error) {
	policy, err := resolver.ParsePastEndPolicy(s)
	if err != nil {
		return policy, fmt.Errorf("--past-end: %w", err)
	}
	return policy, nil
}
