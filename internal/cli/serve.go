package cli

import (
	"fmt"
	"os"

	"facecam/internal/app"
	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/services/gallery"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the annotated camera view over HTTP",
	Long: `Start the web view. The page at / shows the annotated camera stream with
Start and Stop buttons; frames are pushed over a websocket at /api/view.`,
	RunE: runServe,
}

var desktopCmd = &cobra.Command{
	Use:   "desktop",
	Short: "Show the annotated camera view in a desktop window",
	RunE:  runDesktop,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(desktopCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default $PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default $HOST or 0.0.0.0)")

	desktopCmd.Flags().Bool("web", false, "Also serve the web view")
	desktopCmd.Flags().Int("port", 0, "Port for --web (default $PORT or 8080)")
	desktopCmd.Flags().String("host", "", "Host for --web (default $HOST or 0.0.0.0)")
}

// applyHostPort lets flags override the environment.
func applyHostPort(cmd *cobra.Command, cfg *config.Config) {
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Host = host
	}
}

// startApp builds the app and loads the reference faces with a progress bar.
func startApp(cmd *cobra.Command) (*app.App, *logger.Logger, error) {
	cfg := config.Load()
	applyHostPort(cmd, cfg)

	log, err := openLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}

	if _, err := application.LoadGallery(cmd.Context(), galleryProgress(os.Stderr)); err != nil {
		application.Close()
		log.Close()
		return nil, nil, fmt.Errorf("failed to load reference faces: %w", err)
	}
	return application, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	cmd.SetContext(ctx)

	application, log, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer log.Close()
	defer application.Close()

	return application.Run(ctx)
}

func runDesktop(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	cmd.SetContext(ctx)

	application, log, err := startApp(cmd)
	if err != nil {
		return err
	}
	defer log.Close()
	defer application.Close()

	return application.RunDesktop(ctx, mustGetBool(cmd, "web"))
}

// galleryProgress draws one bar across the reference images.
func galleryProgress(out *os.File) gallery.Progress {
	var bar *progressbar.ProgressBar
	return func(done, total int, file string) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(out),
				progressbar.OptionSetDescription("Encoding reference faces"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(done)
		if done == total {
			bar.Finish()
		}
	}
}
