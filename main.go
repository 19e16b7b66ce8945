package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/percona/search-clone/clone"
	"github.com/percona/search-clone/config"
	"github.com/percona/search-clone/errors"
	"github.com/percona/search-clone/log"
	"github.com/percona/search-clone/metrics"
	"github.com/percona/search-clone/registry"
	"github.com/percona/search-clone/search"
	"github.com/percona/search-clone/util"
)

// contextKey is a type for context keys used in this package.
type contextKey string

// configContextKey is the context key for storing *config.Config.
const configContextKey contextKey = "config"

var (
	Version   = "v0.1.0" //nolint:gochecknoglobals
	Platform  = ""       //nolint:gochecknoglobals
	GitCommit = ""       //nolint:gochecknoglobals
	GitBranch = ""       //nolint:gochecknoglobals
	BuildTime = ""       //nolint:gochecknoglobals
)

func buildVersion() string {
	return Version + " " + GitCommit + " " + BuildTime
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "search-clone",
		Short: "Clone an Azure AI Search index, schema and documents, into another search service",

		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return errors.Wrap(err, "load config")
			}

			logLevel, err := zerolog.ParseLevel(cfg.Log.Level)
			if err != nil {
				logLevel = zerolog.InfoLevel
			}

			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}

			lg := log.InitGlobals(logLevel, cfg.Log.JSON, cfg.Log.NoColor)
			ctx := lg.WithContext(parent)
			ctx = context.WithValue(ctx, configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := cmd.Context().Value(configContextKey).(*config.Config) //nolint:forcetypeassert

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, nil)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output log in JSON format")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "Disable log color")

	rootCmd.Flags().String(config.FieldSourceEndpoint, "",
		"Source search service URL (e.g. https://source.search.windows.net)")
	rootCmd.Flags().String(config.FieldSourceKey, "", "Source search service admin key")
	rootCmd.Flags().String(config.FieldSourceIndex, "",
		"Index to clone. The target index gets the same name")
	rootCmd.Flags().String(config.FieldTargetEndpoint, "", "Target search service URL")
	rootCmd.Flags().String(config.FieldTargetKey, "", "Target search service admin key")

	rootCmd.Flags().String("key-field", config.DefaultKeyField,
		"Sortable, filterable field used to page through the source documents")
	rootCmd.Flags().Int("page-size", config.MaxPageSize,
		"Documents per query and per upload (at most 1000)")
	rootCmd.Flags().Duration("timeout", 0, "Deadline for the whole clone (0 = none)")
	rootCmd.Flags().String("api-version", config.DefaultAPIVersion, "Search REST API version")
	rootCmd.Flags().String("metrics-file", "",
		"Write Prometheus metrics to this file when the clone ends (node exporter textfile format)")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			info := fmt.Sprintf("Version:   %s\nPlatform:  %s\nGitCommit: "+
				"%s\nGitBranch: %s\nBuildTime: %s\nGoVersion: %s",
				Version,
				Platform,
				GitCommit,
				GitBranch,
				BuildTime,
				runtime.Version(),
			)

			cmd.Println(info)
		},
	}
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		log.New("cli").Error(err, "Clone failed")
		os.Exit(1)
	}
}

// run clones the configured index. A nil builder builds clients from cfg.
func run(ctx context.Context, cfg *config.Config, builder registry.Builder) error {
	err := config.Validate(cfg)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if builder == nil {
		builder = registry.ClientBuilder{
			Options: &search.ClientOptions{APIVersion: cfg.Search.APIVersion},
		}
	}

	promRegistry := prometheus.NewRegistry()
	metrics.Init(promRegistry)

	lg := log.Ctx(ctx)
	lg.Info("search-clone " + buildVersion())
	lg.With(log.Index(cfg.SourceIndex)).
		Infof("Cloning index %q from %s to %s", cfg.SourceIndex, cfg.SourceEndpoint, cfg.TargetEndpoint)

	m := clone.NewMigration(registry.New(cfg, builder), cfg.SourceIndex, &clone.Options{
		KeyField: cfg.Clone.KeyField,
		PageSize: cfg.Clone.PageSize,
		OnStateChanged: func(s clone.State) {
			lg.Debugf("Clone state: %s", s)
		},
	})

	err = util.WithTimeout(ctx, cfg.Clone.Timeout, m.Run)

	if cfg.MetricsFile != "" {
		merr := metrics.WriteTextfile(cfg.MetricsFile, promRegistry)
		if merr != nil {
			lg.Error(merr, "Write metrics file")
		}
	}

	if err != nil {
		return err //nolint:wrapcheck
	}

	st := m.Status()
	elapsed := st.FinishTime.Sub(st.StartTime)

	schema := "replaced"
	if st.Schema != nil && st.Schema.Created {
		schema = "created"
	}

	lg.With(log.Elapsed(elapsed), log.Count(st.Copied)).
		Infof("Index %q cloned (%s): %s documents, %d batches, %s",
			cfg.SourceIndex, schema, humanize.Comma(st.Copied), st.Batches,
			elapsed.Round(time.Millisecond))

	return nil
}
