package synth

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kiesman99/quilt/internal/quilt"
	"github.com/kiesman99/quilt/pkg/texture"
)

// Options contains all configuration for one synthesis run
type Options struct {
	Input  string
	Output string

	Width  int
	Height int

	Params quilt.Params

	// Seed makes the run repeatable; zero seeds from system entropy.
	Seed    uint64
	Workers int
	Quality int

	// Progress receives a progress bar; nil disables it.
	Progress io.Writer
	// Log receives the completion message; nil disables it.
	Log io.Writer
}

// Synthesizer loads the source image, quilts it and writes the result
type Synthesizer struct {
	options *Options
}

// NewSynthesizer creates a new synthesizer instance
func NewSynthesizer(opts *Options) *Synthesizer {
	return &Synthesizer{options: opts}
}

// Run performs the synthesis. The output format and parameters are checked
// before the source is read.
func (s *Synthesizer) Run(ctx context.Context) error {
	opts := s.options

	if _, err := texture.FormatForPath(opts.Output); err != nil {
		return err
	}

	qopts := []quilt.Option{quilt.WithWorkers(opts.Workers)}
	if opts.Seed != 0 {
		qopts = append(qopts, quilt.WithSeed(opts.Seed))
	}
	if opts.Progress != nil {
		qopts = append(qopts, quilt.WithProgress(progressBar(opts.Progress, 60)))
	}

	q, err := quilt.New(opts.Params, qopts...)
	if err != nil {
		return err
	}

	source, err := texture.Load(opts.Input)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}

	out, err := q.Quilt(ctx, source, opts.Width, opts.Height)
	if err != nil {
		return err
	}

	if err := texture.Save(opts.Output, out, &texture.EncodeOptions{Quality: opts.Quality}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if opts.Log != nil {
		fmt.Fprintf(opts.Log, "Texture generation complete: %s (%dx%d)\n", opts.Output, opts.Width, opts.Height)
	}
	return nil
}

// progressBar renders a single-line bar that is redrawn after every tile.
func progressBar(w io.Writer, width int) quilt.ProgressFunc {
	return func(done, total int) {
		filled := width * done / total
		fmt.Fprintf(w, "\r[%s%s] %6.2f%%", strings.Repeat("=", filled), strings.Repeat(" ", width-filled),
			float64(done)/float64(total)*100)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}
