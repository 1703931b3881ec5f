package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/quilt/internal/quilt"
	"github.com/kiesman99/quilt/internal/synth"
)

var cfgFile string

// errUsage marks a command line that could not be parsed. Usage has already
// been printed and the process exits successfully.
var errUsage = errors.New("usage requested")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quilt",
	Short: "Synthesize large textures from a small sample by image quilting",
	Long: `quilt tiles overlapping patches of a source image into a larger texture.

Each patch is chosen so that its overlap with the already placed patches has a
low luminance error, and is joined along a minimum error boundary cut so that
seams follow the texture instead of straight lines.

Output format is chosen by extension: .png, .jpg/.jpeg or .bmp.

Examples:
  # 512x512 texture from 48x48 tiles with default seams and tolerance
  quilt --input brick.png --output out/brick.png --width 512 --height 512 --tileW 48 --tileH 48

  # Wider overlap, strict matching, repeatable result
  quilt --input grass.jpg --output grass.jpg --width 800 --height 600 --tileW 40 --tileH 40 --seamW 10 --seamH 10 --tolerance 0 --seed 7

  # Plain random tiling without seam blending
  quilt --input cloth.bmp --output cloth.bmp --width 300 --height 300 --tileW 32 --tileH 32 --mseSelect=false --minCut=false

  # Start HTTP server
  quilt serve --port 8080`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runQuilt,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// run executes the command line and returns the process exit code. Help and
// unparseable flags exit 0; any other error is reported on stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := execute(ctx, args, stdout, stderr)
	if err == nil || errors.Is(err, errUsage) {
		return 0
	}
	fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.quilt.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log tile placement details to stderr")

	// Unparseable flags are treated like a help request.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		cmd.Help()
		return errUsage
	})

	// Input/output
	rootCmd.Flags().String("input", "", "source texture image (required)")
	rootCmd.Flags().String("output", "", "output image, .png/.jpg/.bmp (required)")
	rootCmd.Flags().Int("width", 0, "output width in pixels (required)")
	rootCmd.Flags().Int("height", 0, "output height in pixels (required)")
	rootCmd.Flags().Int("quality", 95, "JPEG quality")

	// Tile options
	rootCmd.Flags().Int("tileW", 0, "tile width in pixels (required)")
	rootCmd.Flags().Int("tileH", 0, "tile height in pixels (required)")
	rootCmd.Flags().Int("seamW", 0, "overlap width, at least 1 (default max(1, tileW/6))")
	rootCmd.Flags().Int("seamH", 0, "overlap height, at least 1 (default max(1, tileH/6))")
	rootCmd.Flags().Bool("mseSelect", true, "select tiles by overlap error")
	rootCmd.Flags().Bool("minCut", true, "blend tiles along minimum error cuts")
	rootCmd.Flags().Float64("tolerance", quilt.DefaultTolerance, "accepted relative error above the best match")

	// Run options
	rootCmd.Flags().Uint64("seed", 0, "random seed (0 = random)")
	rootCmd.Flags().Int("workers", 0, "goroutines evaluating tile candidates (0 = GOMAXPROCS)")
	rootCmd.Flags().BoolP("quiet", "q", false, "do not print progress")

	// Bind flags to viper for root command
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	for _, name := range []string{
		"input", "output", "width", "height", "quality",
		"tileW", "tileH", "seamW", "seamH", "mseSelect", "minCut", "tolerance",
		"seed", "workers", "quiet",
	} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".quilt" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".quilt")
	}

	viper.SetEnvPrefix("quilt")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	setupLogging(os.Stderr, viper.GetBool("verbose"))
}

// setupLogging installs a stderr text logger for the engine and the default
// slog logger.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	quilt.SetLogger(logger)
}

func runQuilt(cmd *cobra.Command, args []string) error {
	input := viper.GetString("input")
	output := viper.GetString("output")
	width := viper.GetInt("width")
	height := viper.GetInt("height")
	tileW := viper.GetInt("tileW")
	tileH := viper.GetInt("tileH")

	// Missing required parameters are a help request, not a failure.
	if input == "" || output == "" || width <= 0 || height <= 0 || tileW <= 0 || tileH <= 0 {
		return cmd.Help()
	}

	// Seams default from the tile size; explicit values are validated as given.
	params := quilt.DefaultParams(tileW, tileH)
	if viper.IsSet("seamW") {
		params.SeamWidth = viper.GetInt("seamW")
	}
	if viper.IsSet("seamH") {
		params.SeamHeight = viper.GetInt("seamH")
	}
	params.Tolerance = viper.GetFloat64("tolerance")
	params.MSESelection = viper.GetBool("mseSelect")
	params.MinCut = viper.GetBool("minCut")

	opts := &synth.Options{
		Input:   input,
		Output:  output,
		Width:   width,
		Height:  height,
		Params:  params,
		Seed:    viper.GetUint64("seed"),
		Workers: viper.GetInt("workers"),
		Quality: viper.GetInt("quality"),
		Log:     cmd.OutOrStdout(),
	}
	if !viper.GetBool("quiet") {
		opts.Progress = cmd.ErrOrStderr()
	}

	return synth.NewSynthesizer(opts).Run(cmd.Context())
}
