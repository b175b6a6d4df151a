package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
)

func newUnpackCmd(opts *globalOptions) *cobra.Command {
	var outputDir string
	var sha256 string
	var format string
	var classify bool
	var noInspect bool

	cmd := &cobra.Command{
		Use:   "unpack <apk|url>...",
		Short: "Extract APKs into directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if len(args) > 1 && (outputDir != "" || sha256 != "") {
				return fmt.Errorf("--output and --sha256 need a single archive")
			}

			bar := newByteBar("Unpacking")
			mgr, _, _, err := newManager(opts, extractor.New(extractor.WithProgress(bar)))
			if err != nil {
				return err
			}
			defer mgr.Close()

			var records []*domain.UnpackRecord
			var failed int

			for _, arg := range args {
				bar.Reset()
				rec, err := mgr.Unpack(cmd.Context(), domain.Request{
					Source:    domain.Source{Location: arg, SHA256: sha256},
					OutputDir: outputDir,
					Classify:  classify,
					Inspect:   !noInspect,
				})
				bar.Finish()

				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: %v\n", red("✗"), arg, err)
					failed++
					continue
				}
				records = append(records, rec)
			}

			if format != formatText {
				if err := encode(cmd.OutOrStdout(), format, records); err != nil {
					return err
				}
			} else {
				for _, rec := range records {
					printRecord(cmd, rec, classify)
				}
			}

			if failed > 0 {
				return fmt.Errorf("failed to unpack %d archive(s)", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory (default <name>_unpacked next to the archive)")
	cmd.Flags().StringVar(&sha256, "sha256", "", "Expected SHA256 checksum")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	cmd.Flags().BoolVarP(&classify, "classify", "c", false, "Group native libraries by architecture")
	cmd.Flags().BoolVar(&noInspect, "no-inspect", false, "Skip reading AndroidManifest.xml")
	return cmd
}

func printRecord(cmd *cobra.Command, rec *domain.UnpackRecord, classify bool) {
	w := cmd.OutOrStdout()

	name := rec.Package
	if name == "" {
		name = rec.Archive
	}
	if rec.VersionName != "" {
		name += "-" + rec.VersionName
	}

	fmt.Fprintf(w, "%s %s\n", green("✓"), bold(name))
	fmt.Fprintf(w, "  %s %s\n", cyan("archive:"), rec.Archive)
	fmt.Fprintf(w, "  %s %s\n", cyan("path:"), rec.OutputDir)
	fmt.Fprintf(w, "  %s %s\n", cyan("sha256:"), dim(rec.SHA256))

	if classify {
		fmt.Fprintln(w)
		printLibs(w, rec.Libs)
	}
}
