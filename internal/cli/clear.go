package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the download cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, _, err := newManager(opts, nil)
			if err != nil {
				return err
			}
			defer mgr.Close()

			size, _ := mgr.CacheSize()

			if err := mgr.ClearCache(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Cache cleared (%s freed)\n", green("✓"), formatSize(size))
			return nil
		},
	}
}
