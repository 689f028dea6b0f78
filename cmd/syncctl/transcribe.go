package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexiqai/transcript-sync/internal/config"
	"github.com/lexiqai/transcript-sync/internal/stt"
	"github.com/lexiqai/transcript-sync/internal/transcript"
)

func newTranscribeCmd() *cobra.Command {
	var (
		output string
		raw    bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <media-url>",
		Short: "Fetch a timed transcript for hosted media from Deepgram",
		Long: `Transcribe a hosted audio or video file with Deepgram's pre-recorded API
and write the words and sentences in the native layout. Output ending in
.yaml or .yml is written as YAML, anything else as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DeepgramAPIKey == "" {
				return fmt.Errorf("DEEPGRAM_API_KEY is required")
			}

			client := stt.NewDeepgramClient(cfg)

			var data []byte
			if raw {
				data, err = client.Raw(cmd.Context(), args[0])
			} else {
				var tr *transcript.Transcript
				tr, err = client.Transcribe(cmd.Context(), args[0])
				if err == nil {
					data, err = encodeFor(output, tr)
				}
			}
			if err != nil {
				return err
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: stdout)")
	cmd.Flags().BoolVar(&raw, "raw", false, "write the Deepgram response as received")
	return cmd
}

func encodeFor(path string, tr *transcript.Transcript) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return transcript.EncodeYAML(tr)
	default:
		return transcript.EncodeJSON(tr)
	}
}
