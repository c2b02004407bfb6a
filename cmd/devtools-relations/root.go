package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/scrypster/storyblok-devtools/internal/app"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/logging"
	"github.com/scrypster/storyblok-devtools/internal/notify"
)

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	token      string
	version    string
	verbose    bool
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "devtools-relations",
		Short: "Inspect which Storyblok stories reference each other",
		Long: `devtools-relations analyzes the references between the stories of a
Storyblok space. Results are cached per token, version and story for the
configured TTL.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file (default $SBDT_CONFIG)")
	flags.StringVar(&c.token, "token", "", "Storyblok access token (default $SBDT_STORYBLOK_TOKEN)")
	flags.StringVar(&c.version, "version", "", `content version, "draft" or "published"`)
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log progress to stderr")
	flags.BoolVar(&c.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newAnalyzeCmd(c),
		newStoriesCmd(c),
		newLocalesCmd(c),
		newCacheCmd(c),
	)
	return root
}

// open loads configuration with flag overrides and wires the components.
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv("SBDT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		cfg.Storyblok.Token = c.token
	}
	if c.version != "" {
		cfg.Storyblok.Version = c.version
	}

	logger := slog.New(slog.DiscardHandler)
	if c.verbose {
		logger = logging.NewWithWriter(cfg.Logging, cmd.ErrOrStderr())
	}
	return app.New(cfg, logger)
}

func closeApp(a *app.App, cmd *cobra.Command) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
	}
}

// notifyBackend tells a running backend sharing the data directory about a cache
// change. Failures only warn.
func notifyBackend(a *app.App, eventType, subjectUUID string) {
	if a.Config.Storage.Engine == "memory" {
		return
	}
	if err := notify.NewEventWriter(a.Config.Storage.DataPath).Notify(eventType, subjectUUID); err != nil {
		a.Logger.Warn("failed to notify backend", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
