package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/jamestelfer/micropub-bridge/internal/micropub"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type options struct {
	contentType string
	maxMemory   int64
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := options{}

	cmd := &cobra.Command{
		Use:   "normalize [file]",
		Short: "Print the canonical document for a Micropub request body",
		Long: `Reads a Micropub create request body from a file (or stdin when no file is
given) and prints the canonical mf2 JSON document it normalizes to.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("could not open request body: %w", err)
				}
				defer f.Close()
				in = f
			}

			return run(cmd, opts, in)
		},
	}

	cmd.Flags().StringVarP(&opts.contentType, "content-type", "t", "application/x-www-form-urlencoded", "Content-Type of the request body")
	cmd.Flags().Int64Var(&opts.maxMemory, "max-memory", 1<<20, "Bytes of a multipart body held in memory")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log decoding detail to stderr")

	return cmd
}

func run(cmd *cobra.Command, opts options, in io.Reader) error {
	level := zerolog.WarnLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level)

	req, err := http.NewRequestWithContext(logger.WithContext(cmd.Context()), http.MethodPost, "/micropub", in)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", opts.contentType)

	body, err := micropub.Decode(req, opts.maxMemory)
	if err != nil {
		return clientError(err)
	}

	doc, err := micropub.Normalize(body)
	if err != nil {
		return clientError(err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)

	return enc.Encode(doc)
}

// clientError reports the failure as a Micropub client would see it.
func clientError(err error) error {
	var failure *micropub.Error
	if errors.As(err, &failure) {
		return fmt.Errorf("%d %s", failure.Status, failure.Message)
	}
	return err
}
