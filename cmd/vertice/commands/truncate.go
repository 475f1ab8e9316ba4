package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verticedb/vertice/pkg/config"
)

var truncateForce bool

var truncateCmd = &cobra.Command{
	Use:   "truncate <database>",
	Short: "Reset a database's data, keeping its shape and identity",
	Long: `Discard a database's records and transaction log while preserving its
directories, its file names, its identity and its allocated id ranges. The
database can be started again afterwards and comes up empty.

Examples:
  # Truncate a database (asks for --force)
  vertice truncate graph --force`,
	Args: cobra.ExactArgs(1),
	RunE: runTruncate,
}

func init() {
	truncateCmd.Flags().BoolVar(&truncateForce, "force", false, "Confirm the destructive reset")
}

func runTruncate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	name := args[0]
	if !truncateForce {
		return fmt.Errorf("truncating %q discards all of its records; re-run with --force to confirm", name)
	}

	cache := buildPageCache(cfg)
	defer func() { _ = cache.Close() }()

	db, err := buildDatabase(cfg, cache, name)
	if err != nil {
		return err
	}

	if err := db.Truncate(); err != nil {
		return fmt.Errorf("failed to truncate database %q: %w", name, err)
	}

	fmt.Printf("Database %q truncated\n", name)
	return nil
}
