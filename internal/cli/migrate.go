package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"facecam/internal/config"
	"facecam/internal/models"
	"facecam/internal/repository"
	"facecam/internal/repository/sqlite"
	"facecam/internal/services/storage"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Import existing snapshot files into the database",
	Long: `Scan the snapshot directory and record every "<timestamp>_<label>...jpg"
file that is not in the database yet. Labels come from the filename.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().String("dir", "", "Snapshot directory (default $SNAPSHOT_DIR)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	dir := mustGetString(cmd, "dir")
	if dir == "" {
		dir = cfg.SnapshotDirectory
	}
	if dir == "" {
		return fmt.Errorf("no snapshot directory: pass --dir or set SNAPSHOT_DIR")
	}
	if cfg.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is empty")
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Migrating snapshots from %s to database %s\n", dir, cfg.DatabasePath)

	sightings := sqlite.NewSightingRepository(db)
	imported, skipped, err := importSnapshots(dir, sightings, sqlite.NewFaceRepository(db), out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ Imported %d snapshot(s)\n", imported)
	if skipped > 0 {
		fmt.Fprintf(out, "⚠️  Skipped %d file(s)\n", skipped)
	}

	if stats, err := sightings.GetStats(); err == nil {
		printStats(out, stats)
	}
	return nil
}

// importSnapshots records every snapshot in dir that the database does not
// know yet. Files already present are neither imported nor counted as skipped.
func importSnapshots(dir string, sightings repository.SightingRepository, faces repository.FaceRepository, out io.Writer) (imported, skipped int, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".jpg") {
			continue
		}

		exists, err := sightings.Exists(name)
		if err != nil {
			return imported, skipped, err
		}
		if exists {
			continue
		}

		ts, labels, err := storage.ParseFilename(name)
		if err != nil {
			fmt.Fprintf(out, "⚠️  Skipping %s: %v\n", name, err)
			skipped++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(out, "⚠️  Failed to stat %s: %v\n", name, err)
			skipped++
			continue
		}

		id, err := sightings.Insert(&models.Sighting{
			Filename:  name,
			Timestamp: ts,
			FilePath:  filepath.Join(dir, name),
			FileSize:  info.Size(),
		})
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to insert %s: %w", name, err)
		}

		if len(labels) > 0 {
			rows := make([]models.Face, 0, len(labels))
			for _, label := range labels {
				rows = append(rows, models.Face{SightingID: id, Label: label, Known: true})
			}
			if err := faces.InsertBatch(rows); err != nil {
				return imported, skipped, fmt.Errorf("failed to insert labels for %s: %w", name, err)
			}
		}
		imported++
	}
	return imported, skipped, nil
}

func printStats(out io.Writer, stats *models.SightingStats) {
	fmt.Fprintf(out, "\n📊 Database Statistics:\n")
	fmt.Fprintf(out, "   Total sightings: %d\n", stats.TotalSightings)
	fmt.Fprintf(out, "   Total size: %d bytes\n", stats.TotalSizeBytes)
	if len(stats.LabelCounts) > 0 {
		fmt.Fprintf(out, "   Per label:\n")
		for _, label := range sortedKeys(stats.LabelCounts) {
			fmt.Fprintf(out, "      - %s: %d\n", label, stats.LabelCounts[label])
		}
	}
}
