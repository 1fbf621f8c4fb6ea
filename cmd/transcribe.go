package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcriber/scheduler"
	"github.com/maastricht-university/meeting-transcriber/speaker"
)

var transcribeReprocess bool

var transcribeCmd = &cobra.Command{
	Use:   "transcribe MEETING_ID",
	Short: "Transcribe one meeting in the foreground",
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
		ctx := cmd.Context()
		s, err := newStack(ctx, conf, log, prometheus.NewRegistry())
		if err != nil {
			return err
		}
		defer s.close()

		if _, err := scheduler.Check(ctx, s.store, id, transcribeReprocess); err != nil {
			return err
		}
		p, err := s.pipeline(s.locker())
		if err != nil {
			return err
		}
		res, err := p.Run(ctx, id)
		if err != nil {
			return err
		}

		speakers := map[string]string{}
		for _, r := range res.Speakers {
			name := r.Label
			if r.Outcome == speaker.Matched {
				name = r.Match.Candidate.Name
			}
			speakers[r.Label] = name
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"meeting_id": id,
			"file":       res.Record.FileName,
			"path":       res.Path,
			"entries":    res.Entries,
			"replaced":   len(res.Replaced),
			"speakers":   speakers,
		})
	},
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeReprocess, "reprocess", false, "transcribe even if the audio was processed before")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
