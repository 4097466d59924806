package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/kamilpajak/radiolens/internal/config"
	"github.com/kamilpajak/radiolens/internal/llm"
	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/internal/results"
	"github.com/kamilpajak/radiolens/internal/session"
	"github.com/kamilpajak/radiolens/internal/snapshot"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// options holds the flags shared by all commands.
type options struct {
	configPath string

	jsonOutput bool
	mimeType   string
	strict     bool
	pngPath    string

	host string
	port string
}

func main() {
	if newRootCmd().Execute() != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "radiolens <image>",
		Short: "AI medical image classifier",
		Long: `Sends a chest X-ray to Google Gemini and prints the likely diagnoses,
a narrative report and the area of interest.

Examples:
  radiolens ./chest.png
  radiolens ./scan.jpg --json
  radiolens ./scan.webp --png report.png
  radiolens serve --port 8080
  radiolens install-browser`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default ./"+config.DefaultFile+" if present)")
	root.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output result as JSON")
	root.Flags().StringVar(&opts.mimeType, "mime", "", "MIME type of the image (detected when empty)")
	root.Flags().BoolVar(&opts.strict, "strict", false, "Reject replies with out-of-range values")
	root.Flags().StringVar(&opts.pngPath, "png", "", "Also write a PNG snapshot of the results page to this file")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newVersionCmd())
	root.AddCommand(newInstallBrowserCmd())
	return root
}

// loadConfig reads configuration and applies the logging settings.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logger.Configure(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

func clientOptions(cfg *config.Config) llm.Options {
	return llm.Options{
		APIKey:             cfg.APIKey,
		Model:              cfg.Model,
		BaseURL:            cfg.BaseURL,
		Strict:             cfg.StrictValidation(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Timeout:            cfg.AnalysisTimeout,
	}
}

func runAnalyze(ctx context.Context, opts *options, path string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.strict {
		cfg.Validation = config.ValidationStrict
	}

	client, err := llm.NewClient(clientOptions(cfg))
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(client)
	sp := startSpinner(stderr)
	submitErr := sess.Submit(ctx, newLocalFile(path, opts.mimeType))
	view, err := sess.Wait(ctx)
	sp.Stop()
	if err != nil {
		sess.Reset()
		return err
	}

	if view.Error != "" {
		red := color.New(color.FgRed, color.Bold)
		_, _ = red.Fprint(stderr, "Analysis Error: ")
		fmt.Fprintln(stderr, view.Error)
		if submitErr != nil {
			return fmt.Errorf("%s: %w", path, submitErr)
		}
		return errors.New("analysis failed")
	}

	rv := results.Build(view.Result, view.ImagePreview)
	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view.Result); err != nil {
			return err
		}
	} else {
		dim := color.New(color.FgHiBlack)
		_, _ = dim.Fprintf(stderr, "X-Ray Analysis: %s (%s)\n\n", path, client.Model())
		if err := results.WriteText(stdout, rv); err != nil {
			return err
		}
	}

	if opts.pngPath != "" {
		return writeSnapshot(rv, opts.pngPath, stderr)
	}
	return nil
}

func writeSnapshot(rv results.View, path string, stderr io.Writer) error {
	png, err := snapshot.Report(rv)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	_, _ = color.New(color.FgGreen).Fprintf(stderr, "Snapshot written to %s\n", path)
	return nil
}

// nopSpinner stands in when stderr is not a terminal.
type nopSpinner struct{}

func (nopSpinner) Stop() {}

type stopper interface {
	Stop()
}

func startSpinner(w io.Writer) stopper {
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return nopSpinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " Analyzing X-Ray Image... AI is processing the data. This may take a moment."
	s.Start()
	return s
}
