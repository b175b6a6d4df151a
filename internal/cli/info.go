package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teamcutter/apkx/internal/apkinfo"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
)

type archiveInfo struct {
	App     *domain.AppInfo `json:"app,omitempty" yaml:"app,omitempty"`
	ABIs    []string        `json:"abis" yaml:"abis"`
	Entries int             `json:"entries" yaml:"entries"`
	Size    int64           `json:"size" yaml:"size"`
}

func newInfoCmd(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "info <apk>",
		Short: "Show manifest details and ABIs without unpacking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			_, log, err := opts.load()
			if err != nil {
				return err
			}

			zx := extractor.NewZIP()
			entries, err := zx.List(args[0])
			if err != nil {
				return err
			}

			result := archiveInfo{
				ABIs:    apkinfo.ABIs(entries),
				Entries: len(entries),
			}
			for _, e := range entries {
				result.Size += int64(e.Size)
			}

			stop := withSpinner(cmd.Context(), "Reading manifest...")
			app, err := apkinfo.New(log).Inspect(args[0])
			stop()
			if err != nil {
				log.Warnf("%v", err)
			} else {
				result.App = app
			}

			if format != formatText {
				return encode(cmd.OutOrStdout(), format, result)
			}

			w := cmd.OutOrStdout()
			if app != nil {
				fmt.Fprintf(w, "%s %s\n", green("●"), bold(app.Package))
				if app.VersionName != "" {
					fmt.Fprintf(w, "  %s %s (%s)\n", cyan("version:"), app.VersionName, app.VersionCode)
				}
				if app.MinSDK != "" {
					fmt.Fprintf(w, "  %s %s\n", cyan("min sdk:"), app.MinSDK)
				}
				fmt.Fprintf(w, "  %s %t\n", cyan("extract native libs:"), app.ExtractNativeLibs)
			} else {
				fmt.Fprintf(w, "%s %s %s\n", yellow("!"), bold(args[0]), dim("(no readable manifest)"))
			}
			fmt.Fprintf(w, "  %s %d (%s)\n", cyan("entries:"), result.Entries, formatSize(result.Size))
			if len(result.ABIs) == 0 {
				fmt.Fprintf(w, "  %s %s\n", cyan("abis:"), dim("none"))
			} else {
				for _, abi := range result.ABIs {
					fmt.Fprintf(w, "  %s %s\n", cyan("abi:"), abi)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}
