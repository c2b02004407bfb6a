package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/storyblok-devtools/internal/backup"
	"github.com/scrypster/storyblok-devtools/internal/config"
	"github.com/scrypster/storyblok-devtools/internal/connections"
	"github.com/scrypster/storyblok-devtools/internal/notify"
)

// sqliteConfig loads configuration and insists on the sqlite engine, the
// only one with a single database file to snapshot.
func (c *cli) sqliteConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		path = os.Getenv("SBDT_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if cfg.Storage.Engine != connections.EngineSQLite {
		return nil, fmt.Errorf("cache snapshots need the sqlite engine, configured engine is %q", cfg.Storage.Engine)
	}
	return cfg, nil
}

func newBackupCmd(c *cli) *cobra.Command {
	var dir string
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the cache database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.sqliteConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Join(cfg.Storage.DataPath, "backups")
			}

			info, err := backup.Snapshot(connections.SQLitePath(cfg.Storage), dir, time.Now())
			if err != nil {
				return err
			}
			removed, err := backup.Prune(dir, keep)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}

			if c.jsonOut {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot written to %s (%d bytes)\n", info.Path, info.Size)
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "snapshot directory (default <data path>/backups)")
	cmd.Flags().IntVar(&keep, "keep", 5, "number of snapshots to keep")
	return cmd
}

func newRestoreCmd(c *cli) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "restore [snapshot]",
		Short: "Replace the cache database with a snapshot (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.sqliteConfig()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = filepath.Join(cfg.Storage.DataPath, "backups")
			}

			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				snapshots, err := backup.List(dir)
				if err != nil {
					return err
				}
				if len(snapshots) == 0 {
					return fmt.Errorf("no snapshots in %s", dir)
				}
				path = snapshots[0].Path
			}

			if err := backup.Restore(path, connections.SQLitePath(cfg.Storage)); err != nil {
				return err
			}
			if err := notify.NewEventWriter(cfg.Storage.DataPath).Notify(notify.EventCacheCleared, ""); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "snapshot directory (default <data path>/backups)")
	return cmd
}
