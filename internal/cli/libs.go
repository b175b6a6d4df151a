package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/teamcutter/apkx/internal/extractor"
	"github.com/teamcutter/apkx/internal/unpacker"
)

func newLibsCmd(opts *globalOptions) *cobra.Command {
	var outputDir string
	var format string

	cmd := &cobra.Command{
		Use:   "libs <dir|apk>",
		Short: "List native libraries by architecture",
		Long: "Lists lib/<arch>/*.so in an unpacked directory. Given an archive, " +
			"it is extracted first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			cfg, log, err := opts.load()
			if err != nil {
				return err
			}

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}

			layout := []unpacker.Option{
				unpacker.WithLogger(log),
				unpacker.WithLibDir(cfg.LibDir),
				unpacker.WithNativeSuffix(cfg.NativeSuffix),
			}

			var libs map[string][]string
			libRoot := args[0]
			if info.IsDir() {
				libs, err = unpacker.ClassifyDir(args[0], layout...)
			} else {
				if outputDir == "" {
					outputDir = unpacker.OutputDirWithSuffix(args[0], cfg.OutputSuffix)
				}
				u := unpacker.New(args[0], append(layout,
					unpacker.WithOutputDir(outputDir),
					unpacker.WithExtractor(extractor.New()))...)
				if !u.Extract() {
					return fmt.Errorf("failed to unpack %s", args[0])
				}
				libRoot = u.OutputDir()
				libs, err = u.ClassifyByArchitecture()
			}
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("no %s directory in %s", cfg.LibDir, libRoot)
			}
			if err != nil {
				return err
			}

			if format != formatText {
				return encode(cmd.OutOrStdout(), format, libs)
			}
			printLibs(cmd.OutOrStdout(), libs)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory when given an archive")
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or yaml")
	return cmd
}
