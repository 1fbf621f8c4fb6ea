package cmd

import (
	"encoding/json"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcriber/scheduler"
)

var submitReprocess bool

var submitCmd = &cobra.Command{
	Use:   "submit MEETING_ID",
	Short: "Queue a meeting for transcription by a worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		conf, log, err := setup()
		if err != nil {
			return err
		}
		if conf.Queue.Backend != "redis" {
			return errors.New("submit needs queue.backend redis; use transcribe or the worker's HTTP intake")
		}
		ctx := cmd.Context()
		s, err := newStack(ctx, conf, log, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer s.close()

		sch := &scheduler.Scheduler{Meetings: s.store, Queue: s.queue(), Log: log}
		ack, err := sch.Submit(ctx, id, submitReprocess)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ack)
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitReprocess, "reprocess", false, "replace an existing generated transcript")
}
