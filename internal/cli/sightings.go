package cli

import (
	"fmt"
	"io"
	"sort"

	"facecam/internal/config"
	"facecam/internal/models"
	"facecam/internal/repository/sqlite"

	"github.com/spf13/cobra"
)

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "List stored sightings of recognised faces",
	RunE:  runSightings,
}

func init() {
	rootCmd.AddCommand(sightingsCmd)
	sightingsCmd.Flags().String("label", "", "Only sightings containing this label")
	sightingsCmd.Flags().Int("limit", 20, "Maximum number of sightings to list")
	sightingsCmd.Flags().Bool("stats", false, "Print statistics instead of the list")
}

func runSightings(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is empty")
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	repo := sqlite.NewSightingRepository(db)
	out := cmd.OutOrStdout()

	if mustGetBool(cmd, "stats") {
		stats, err := repo.GetStats()
		if err != nil {
			return err
		}
		printStats(out, stats)
		return nil
	}

	list, err := repo.GetAll(&models.SightingFilter{
		Label: mustGetString(cmd, "label"),
		Limit: mustGetInt(cmd, "limit"),
	})
	if err != nil {
		return err
	}
	printSightings(out, list)
	return nil
}

func printSightings(out io.Writer, list []models.Sighting) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No sightings found")
		return
	}
	for _, s := range list {
		fmt.Fprintf(out, "%s  %-40s %v\n", s.Timestamp.Format("2006-01-02 15:04:05"), s.Filename, s.Labels)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
