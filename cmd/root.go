// Package cmd is the transcriber command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcriber/config"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Speaker-attributed meeting transcription",
	Long: `Transcribes meeting recordings, names each speaker after the matching
attendee and stores the result as a WebVTT transcript.

Examples:
  transcriber transcribe 42
  transcriber submit 42 --reprocess
  transcriber worker
  transcriber reference 7`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command; ctx is cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config/$CONFIG_ENV/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override pipeline.log_level")

	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(referenceCmd)
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Root, *logrus.Logger, error) {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		conf.Pipeline.LogLvl = logLevel
	}
	log, err := newLogger(conf.Pipeline.LogLvl, conf.Pipeline.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return conf, log, nil
}

func newLogger(level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	switch format {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}
