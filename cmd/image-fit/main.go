package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"image-fit-go/internal/compressor"
	"image-fit-go/internal/config"
	"image-fit-go/internal/datauri"
	"image-fit-go/internal/extractor"
	"image-fit-go/internal/logger"
	"image-fit-go/internal/processor"
	"image-fit-go/internal/statistics"
	"image-fit-go/internal/transform"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	verbose    bool
	quiet      bool
	provider   string
	model      string
	outputPath string
	indent     string

	cfg *config.Config
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-fit",
	Short: "Fit inline images to AI provider payload limits",
	Long: `image-fit re-encodes and downsizes images so each one fits the byte
ceiling of the provider it is sent to.

Features:
- Per-provider limits, with proxy destinations resolved through the model ID
- Progressive quality and scale search for JPEG, PNG, WebP and AVIF
- GIF converted to PNG, unknown formats to JPEG
- Rewrites inline data URIs anywhere inside JSON message documents
- Result cache for repeated payloads`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// compressCmd fits a single image file.
var compressCmd = &cobra.Command{
	Use:   "compress <file>",
	Short: "Fit an image file to a provider's limit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd.OutOrStdout(), args[0])
	},
}

// transformCmd rewrites image parts in a JSON message document.
var transformCmd = &cobra.Command{
	Use:   "transform [file]",
	Short: "Rewrite inline images inside a JSON message document",
	Long: `Reads a JSON document from the given file (or stdin), fits every inline
image part to the destination's limit and writes the document to stdout
or --output. Objects whose type is "file" or "image" and that carry a
data: URL are rewritten wherever they appear.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open document: %w", err)
			}
			defer f.Close()
			in = f
		}
		return runTransform(cmd.Context(), in, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// limitsCmd prints the provider limit table.
var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Show provider payload limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLimits(cmd.OutOrStdout())
	},
}

// inspectCmd prints image metadata.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show image format, dimensions and EXIF metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "destination provider ID (default from config)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "model ID, used when the provider is a proxy")

	compressCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: <name>.fit<ext>)")
	transformCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file (default: stdout)")
	transformCmd.Flags().StringVar(&indent, "indent", "", "indent rewritten documents with this string")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(limitsCmd)
	rootCmd.AddCommand(inspectCmd)
}

// runCompress fits one image file and writes the result.
func runCompress(out io.Writer, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return fmt.Errorf("not an image: %s (%s)", filePath, mt.String())
	}

	log := setupLogger()
	proc, err := newProcessor(log)
	if err != nil {
		return err
	}

	destination := cfg.Destination(provider)
	att := &processor.Attachment{
		Type:     processor.TypeFile,
		Mime:     mt.String(),
		URL:      datauri.Serialize(&datauri.EncodedImage{Data: data, Mime: mt.String()}),
		Filename: filepath.Base(filePath),
	}

	logger.WithFile(log, filePath).Debug("Fitting image")
	res := proc.Process(att, destination, model)
	if res.Failed {
		return fmt.Errorf("failed to fit %s: %w", filePath, res.Err)
	}

	target := outputPath
	result, err := datauri.Parse(res.Attachment.URL)
	if err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	if target == "" {
		target = defaultOutputPath(filePath, result.Mime)
	}
	if err := os.WriteFile(target, result.Data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if !quiet {
		status := "unchanged"
		if res.WasCompressed {
			status = "compressed"
		}
		fmt.Fprintf(out, "%s: %s -> %s (%s, %s, limit %s)\n",
			filePath,
			humanize.IBytes(uint64(res.OriginalSize)),
			humanize.IBytes(uint64(result.Size())),
			result.Mime,
			status,
			humanize.IBytes(uint64(cfg.Resolver().ResolveLimit(destination, model))))
		fmt.Fprintf(out, "Written to %s\n", target)
	}

	return nil
}

// runTransform rewrites a JSON document read from in.
func runTransform(ctx context.Context, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := setupLogger()
	proc, err := newProcessor(log)
	if err != nil {
		return err
	}

	var dst io.Writer = out
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		dst = f
	}

	stats := statistics.NewStatistics()
	opts := []transform.Option{transform.WithStatistics(stats)}
	if indent != "" {
		opts = append(opts, transform.WithIndent(indent))
	}
	tr := transform.NewTransformer(proc, log, opts...)

	destination := cfg.Destination(provider)
	report, err := tr.Transform(ctx, in, dst, destination, model)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	stats.Finalize()

	logger.WithDestination(log, destination, model).WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"rewritten":  report.Rewritten,
		"failed":     report.Failed,
	}).Info("Transformed document")

	if !quiet {
		fmt.Fprintln(errOut, stats.GetSummary())
		if stats.GetPartsFailed() > 0 {
			fmt.Fprintln(errOut, stats.GetErrorSummary())
		}
	}

	return nil
}

// runLimits prints either the full table or the resolved limit.
func runLimits(out io.Writer) error {
	resolver := cfg.Resolver()
	opts := cfg.CompressorOptions()

	if provider != "" || model != "" {
		destination := cfg.Destination(provider)
		limit := resolver.ResolveLimit(destination, model)
		fmt.Fprintf(out, "destination: %s\n", destination)
		if model != "" {
			if p, ok := resolver.ResolveProviderFromModel(model); ok && resolver.IsProxy(destination) {
				fmt.Fprintf(out, "model provider: %s\n", p)
			}
		}
		fmt.Fprintf(out, "limit: %d (%s)\n", limit, humanize.IBytes(uint64(limit)))
		fmt.Fprintf(out, "target: %d (%s)\n", opts.TargetSize(limit), humanize.IBytes(uint64(opts.TargetSize(limit))))
		return nil
	}

	limits := resolver.Limits()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DESTINATION\tLIMIT\tTARGET")
	for _, id := range resolver.Destinations() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", id,
			humanize.IBytes(uint64(limits[id])),
			humanize.IBytes(uint64(opts.TargetSize(limits[id]))))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\nProxies (resolved through the model ID): %s\n", strings.Join(resolver.Proxies(), ", "))
	return nil
}

// runInspect prints metadata for an image file.
func runInspect(out io.Writer, filePath string) error {
	log := setupLogger()
	inspector := extractor.NewEXIFInspector(log)

	info, err := inspector.InspectFile(filePath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "File: %s\n", filePath)
	fmt.Fprintf(out, "Type: %s (%s)\n", info.Mime, info.Extension)
	fmt.Fprintf(out, "Size: %s\n", humanize.IBytes(uint64(info.Size)))
	fmt.Fprintf(out, "Dimensions: %dx%d\n", info.Width, info.Height)
	if info.HasEXIF {
		fmt.Fprintf(out, "EXIF orientation: %d\n", info.Orientation)
		if info.Date != nil {
			fmt.Fprintf(out, "Date: %s (%s)\n", info.Date.Date.Format("2006-01-02 15:04:05"), info.Date.Source)
		}
	} else {
		fmt.Fprintln(out, "EXIF: none")
	}

	destination := cfg.Destination(provider)
	limit := cfg.Resolver().ResolveLimit(destination, model)
	target := cfg.CompressorOptions().TargetSize(limit)
	verdict := "fits"
	if info.Size > target {
		verdict = "needs compression"
	}
	fmt.Fprintf(out, "Budget for %s: %s target, %s\n", destination, humanize.IBytes(uint64(target)), verdict)
	return nil
}

// newProcessor wires the compression engine, cache and resolver from config.
func newProcessor(log *logrus.Logger) (*processor.Processor, error) {
	resultCache, err := cfg.NewCache(func(key string) {
		log.WithField("key", key).Debug("Evicted cached image")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	engine := compressor.NewDefaultCompressor(
		compressor.NewImagingCodec(),
		compressor.NewLogObserver(logger.WithOperation(log, "compress")),
		cfg.CompressorOptions(),
	)
	return processor.NewProcessor(cfg.Resolver(), engine, resultCache, cfg.ProcessorOptions(), log), nil
}

// setupLogger configures and returns a logger.
func setupLogger() *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console && !quiet,
		Format:     cfg.Logging.Format,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// defaultOutputPath returns <dir>/<name>.fit<ext> for the output mime.
func defaultOutputPath(inputPath, mime string) string {
	ext := filepath.Ext(inputPath)
	if mt := mimetype.Lookup(mime); mt != nil {
		ext = mt.Extension()
	}
	base := strings.TrimSuffix(inputPath, filepath.Ext(inputPath))
	return base + ".fit" + ext
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
