package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teamcutter/apkx/internal/domain"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previously unpacked archives",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			mgr, _, _, err := newManager(opts, nil)
			if err != nil {
				return err
			}
			defer mgr.Close()

			records, err := mgr.History()
			if err != nil {
				return err
			}

			if format != formatText {
				if records == nil {
					records = []*domain.UnpackRecord{}
				}
				return encode(cmd.OutOrStdout(), format, records)
			}

			w := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintf(w, "\n%s Nothing unpacked yet\n", dim("○"))
				return nil
			}

			for _, rec := range records {
				marker := green("✓")
				switch rec.Status {
				case domain.StatusPending:
					marker = yellow("…")
				case domain.StatusFailed, domain.StatusInterrupted:
					marker = red("✗")
				}

				line := fmt.Sprintf("%s %s", marker, bold(rec.Archive))
				if rec.Package != "" {
					line += " " + dim(rec.Package)
				}
				fmt.Fprintln(w, line)
				fmt.Fprintf(w, "  %s %s\n", cyan("path:"), rec.OutputDir)
				fmt.Fprintf(w, "  %s %s\n", cyan("when:"), rec.UnpackedAt.Local().Format("2006-01-02 15:04:05"))
				if len(rec.Libs) > 0 {
					fmt.Fprintf(w, "  %s %d across %d abi(s)\n", cyan("libs:"), rec.LibCount(), len(rec.Libs))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}

func newForgetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <apk>...",
		Short: "Drop archives from the unpack history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := newManager(opts, nil)
			if err != nil {
				return err
			}
			defer mgr.Close()

			var failed int
			for _, arg := range args {
				if err := mgr.Forget(arg); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", red("✗"), arg, err)
					failed++
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s forgotten\n", green("✓"), bold(arg))
			}

			if failed > 0 {
				return fmt.Errorf("failed to forget %d archive(s)", failed)
			}
			return nil
		},
	}
}
