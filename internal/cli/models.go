package cli

import (
	"fmt"
	"io"

	"facecam/internal/config"
	"facecam/internal/logger"
	"facecam/internal/services/models"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage face detection and recognition model files",
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [keys...]",
	Short: "Download model files",
	Long: `Download the given models, or the ones the configured engine needs when
no keys are given. Use "facecam models list" to see the keys.`,
	RunE: runModelsDownload,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloadable models",
	RunE:  runModelsList,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsListCmd)

	modelsCmd.PersistentFlags().String("dir", "", "Model directory (default $MODEL_DIR or models)")
	modelsDownloadCmd.Flags().String("proxy", "", "Proxy URL, e.g. socks5://127.0.0.1:1080")
	modelsDownloadCmd.Flags().Bool("skip-verify", false, "Skip MD5 verification")
}

func modelDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir := mustGetString(cmd, "dir"); dir != "" {
		return dir
	}
	return cfg.ModelDirectory
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.Load()
	keys := args
	if len(keys) == 0 {
		keys = models.Required(cfg.Engine, cfg.DlibCNN)
	}

	d := models.NewDownloader(modelDir(cmd, cfg), logger.Discard())
	d.ProxyURL = mustGetString(cmd, "proxy")
	d.SkipVerification = mustGetBool(cmd, "skip-verify")
	d.Output = cmd.ErrOrStderr()

	out := cmd.OutOrStdout()
	for _, key := range keys {
		fmt.Fprintf(out, "Downloading %s...\n", key)
		if err := d.Download(ctx, key); err != nil {
			return err
		}
		path, _ := d.Path(key)
		fmt.Fprintf(out, "✓ %s\n", path)
	}
	return nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	printModels(cmd.OutOrStdout(), modelDir(cmd, cfg))
	return nil
}

func printModels(out io.Writer, dir string) {
	for _, key := range models.Keys() {
		m := models.Available[key]
		state := "missing"
		if len(models.Missing(dir, []string{key})) == 0 {
			state = "present"
		}
		fmt.Fprintf(out, "%-16s %-9s %-8s %s\n", key, m.Engine, state, m.Description)
	}
}
