package cli

import (
	"fmt"
	"io"
	"os"

	"facecam/internal/app"
	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/repository/sqlite"
	"facecam/internal/services/gallery"
	"facecam/internal/services/recognition"

	"github.com/spf13/cobra"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Encode the reference directory and list the known faces",
	Long: `Run every reference picture through the configured engine and print the
resulting labels together with the pictures that were skipped. Encodings are
cached in the database so the next start is fast.`,
	RunE: runFaces,
}

func init() {
	rootCmd.AddCommand(facesCmd)
}

func runFaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Load()
	log := logger.Discard()

	engine, err := recognition.NewEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to load %s engine: %w", cfg.Engine, err)
	}
	defer engine.Close()

	var db *sqlite.DB
	if cfg.DatabasePath != "" {
		db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
	}

	g, err := app.NewGallery(cfg, engine, db, log)
	if err != nil {
		return err
	}

	report, err := g.Load(ctx, galleryProgress(os.Stderr))
	if err != nil {
		return err
	}

	printFaces(cmd.OutOrStdout(), engine.Name(), g.References(), report)
	return nil
}

func printFaces(out io.Writer, engine string, refs []recognition.Reference, report gallery.Report) {
	fmt.Fprintf(out, "Engine: %s\n", engine)
	fmt.Fprintf(out, "Reference faces: %d (%d from cache)\n", report.Loaded, report.Cached)
	for _, ref := range refs {
		fmt.Fprintf(out, "  %-24s %-32s %d-d\n", ref.Label, ref.Source, len(ref.Encoding))
	}
	if report.Skipped > 0 {
		fmt.Fprintf(out, "Skipped: %d\n", report.Skipped)
		for _, skip := range report.Skips {
			fmt.Fprintf(out, "  %-24s %s\n", skip.File, skip.Reason)
		}
	}
}
