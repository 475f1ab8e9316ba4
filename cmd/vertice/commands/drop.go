package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verticedb/vertice/pkg/config"
)

var dropForce bool

var dropCmd = &cobra.Command{
	Use:   "drop <database>",
	Short: "Permanently delete a database",
	Long: `Permanently delete a database: its store files, its transaction logs and
both of its directories. Nothing is flushed on the way out; the data is
simply gone. This cannot be undone.

Examples:
  # Drop a database (asks for --force)
  vertice drop graph --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVar(&dropForce, "force", false, "Confirm the irreversible deletion")
}

func runDrop(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	name := args[0]
	if !dropForce {
		return fmt.Errorf("dropping %q deletes all of its data permanently; re-run with --force to confirm", name)
	}

	cache := buildPageCache(cfg)
	defer func() { _ = cache.Close() }()

	db, err := buildDatabase(cfg, cache, name)
	if err != nil {
		return err
	}

	if err := db.Drop(); err != nil {
		return fmt.Errorf("failed to drop database %q: %w", name, err)
	}

	fmt.Printf("Database %q dropped\n", name)
	return nil
}
