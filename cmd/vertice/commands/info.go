package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/verticedb/vertice/internal/bytesize"
	"github.com/verticedb/vertice/pkg/config"
	"github.com/verticedb/vertice/pkg/layout"
)

var infoCmd = &cobra.Command{
	Use:   "info [database]",
	Short: "Show a database's on-disk layout and store files",
	Long: `Display the on-disk layout of a database: its directories and the size of
every store file. Missing files are listed as absent, which is normal for a
database that has never been started.

Examples:
  # Inspect the configured default database
  vertice info

  # Inspect a specific database
  vertice info graph`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	name := resolveDatabaseName(cfg, args)
	l := layout.Of(cfg.Store.DatabasesRoot, cfg.Store.TransactionLogsRoot, name)

	fmt.Printf("Database:                  %s\n", l.Name())
	fmt.Printf("Database directory:        %s\n", l.DatabaseDirectory())
	fmt.Printf("Transaction log directory: %s\n", l.TransactionLogsDirectory())
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STORE FILE\tSIZE")
	for _, path := range l.StoreFiles() {
		fmt.Fprintf(w, "%s\t%s\n", path, describeFile(path))
	}
	return w.Flush()
}

func describeFile(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "absent"
		}
		return fmt.Sprintf("error: %v", err)
	}
	return bytesize.ByteSize(info.Size()).String()
}
