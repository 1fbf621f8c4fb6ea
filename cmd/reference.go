package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/meeting-transcriber/reference"
)

var referenceCmd = &cobra.Command{
	Use:   "reference MEMBER_ID...",
	Short: "Build reference voice embeddings from members' sample clips",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := parseID(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
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

		ext, err := s.extractor()
		if err != nil {
			return err
		}
		b := &reference.Builder{Members: s.store, Files: s.files, Embedder: ext, Store: s.refs, Log: log}
		failed := b.BuildAll(ctx, ids)
		for _, id := range ids {
			status := "ok"
			if err := failed[id]; err != nil {
				status = err.Error()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", id, status)
		}
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d references failed", len(failed), len(ids))
		}
		return nil
	},
}
