package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatrelay/chatrelay/internal/transcript"
)

func newTranscriptCmd() *cobra.Command {
	var (
		limit     int
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "List recent exchanges from the transcript log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return err
			}
			path := cfg.Transcript.Path
			if path == "" {
				if path, err = transcript.DefaultDBPath(); err != nil {
					return err
				}
			}
			store, err := transcript.NewSQLiteStore(path)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if olderThan > 0 {
				n, err := store.Prune(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d exchange(s).\n", n)
				return nil
			}

			exchanges, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(exchanges) == 0 {
				fmt.Fprintln(out, "No exchanges recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCHAT\tAUTHOR\tOUTCOME\tTOKENS\tPROMPT\tANSWER")
			for _, e := range exchanges {
				prompt := e.Prompt
				if e.HasImage {
					prompt = "[image] " + prompt
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d/%d\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"),
					e.ChatID, e.Author, e.Outcome, e.InputTokens, e.OutputTokens,
					truncate(prompt, 40), truncate(e.Answer, 60))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of exchanges to show (0 = all)")
	cmd.Flags().DurationVar(&olderThan, "prune-older-than", 0, "delete exchanges older than this duration instead of listing")
	return cmd
}

// truncate shortens s to maxLen characters on one line, appending "..." if cut.
func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
