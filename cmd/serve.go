package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/quilt/internal/server"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the texture synthesis API",
	Long: `Start an HTTP server that synthesizes textures over a REST API.

POST a source image to /api/v1/quilt with the output size and tile options as
query parameters; the response body is the synthesized image.

Examples:
  # Start server on default port 8080
  quilt serve

  # Start server on custom port with a longer per-request timeout
  quilt serve --port 3000 --timeout 5m

  # Listen on all interfaces and cap output size
  quilt serve --bind 0.0.0.0 --max-pixels 1048576

  # Request a texture
  curl --data-binary @brick.png -o out.png \
    'http://localhost:8080/api/v1/quilt?width=512&height=512&tileW=48&tileH=48'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Bad server flags are errors, not help requests.
	serveCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return err
	})

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 2*time.Minute, "request timeout")

	// Request limits
	serveCmd.Flags().Int64("max-upload", server.DefaultMaxUploadBytes, "maximum source image size in bytes")
	serveCmd.Flags().Int("max-pixels", server.DefaultMaxPixels, "maximum width*height of a synthesized texture")
	serveCmd.Flags().Int("max-source-pixels", server.DefaultMaxSourcePixels, "maximum width*height of an uploaded source image")
	serveCmd.Flags().Int("workers", 0, "goroutines evaluating tile candidates per request (0 = GOMAXPROCS)")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.max-upload", serveCmd.Flags().Lookup("max-upload"))
	viper.BindPFlag("server.max-pixels", serveCmd.Flags().Lookup("max-pixels"))
	viper.BindPFlag("server.max-source-pixels", serveCmd.Flags().Lookup("max-source-pixels"))
	viper.BindPFlag("server.workers", serveCmd.Flags().Lookup("workers"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	apiServer := server.NewServer(version, server.Limits{
		MaxUploadBytes:  viper.GetInt64("server.max-upload"),
		MaxPixels:       viper.GetInt("server.max-pixels"),
		MaxSourcePixels: viper.GetInt("server.max-source-pixels"),
		Workers:         viper.GetInt("server.workers"),
		Timeout:         timeout,
	})

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     server.NewRouter(apiServer),
		ReadTimeout: timeout,
		// Leave room to write the timeout response itself.
		WriteTimeout: timeout + 10*time.Second,
	}

	// Graceful shutdown
	go func() {
		<-cmd.Context().Done()

		fmt.Fprintf(cmd.ErrOrStderr(), "\nShutting down server...\n")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("server shutdown", "err", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting quilt server on %s\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/api/v1/health\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Quilt endpoint: POST http://%s/api/v1/quilt\n", addr)

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
