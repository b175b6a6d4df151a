package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teamcutter/apkx/internal/apkinfo"
	"github.com/teamcutter/apkx/internal/cache"
	"github.com/teamcutter/apkx/internal/config"
	"github.com/teamcutter/apkx/internal/domain"
	"github.com/teamcutter/apkx/internal/extractor"
	"github.com/teamcutter/apkx/internal/fetcher"
	"github.com/teamcutter/apkx/internal/logger"
	"github.com/teamcutter/apkx/internal/manager"
	"github.com/teamcutter/apkx/internal/state"
)

type globalOptions struct {
	configPath string
	verbose    bool
	quiet      bool
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:          "apkx",
		Short:        "Unpack Android packages and sort their native libraries by ABI",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default ~/.apkx/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "Log debug messages")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Only log errors")

	rootCmd.AddCommand(
		newUnpackCmd(opts),
		newLibsCmd(opts),
		newInfoCmd(opts),
		newHistoryCmd(opts),
		newForgetCmd(opts),
		newClearCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func (o *globalOptions) load() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Level()
	switch {
	case o.verbose:
		level = logger.LevelDebug
	case o.quiet:
		level = logger.LevelError
	}

	return cfg, logger.New(os.Stderr, level), nil
}

func newState(cfg *config.Config, log *logger.Logger) (domain.State, error) {
	if cfg.StateBackend == config.BackendJSON {
		return state.New(cfg.ManifestFile), nil
	}
	return state.NewSQLite(cfg.StateFile, cfg.ManifestFile, log)
}

func newManager(o *globalOptions, ex domain.Extractor) (*manager.Manager, *config.Config, *logger.Logger, error) {
	cfg, log, err := o.load()
	if err != nil {
		return nil, nil, nil, err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return nil, nil, nil, err
	}

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := newState(cfg, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	f := fetcher.New(cfg.CacheDir, timeout)
	if o.quiet {
		f.Quiet()
	}

	if ex == nil {
		ex = extractor.New()
	}

	return manager.New(
		f,
		c,
		ex,
		st,
		apkinfo.New(log),
		manager.Layout{
			OutputSuffix: cfg.OutputSuffix,
			LibDir:       cfg.LibDir,
			NativeSuffix: cfg.NativeSuffix,
		},
		log), cfg, log, nil
}
