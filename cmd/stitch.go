package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imagineos/tapthepost/internal/archive"
	"github.com/imagineos/tapthepost/internal/models"
	"github.com/imagineos/tapthepost/internal/pipeline"
	"github.com/imagineos/tapthepost/internal/session"
)

func newStitchCmd(opts *rootOptions) *cobra.Command {
	var layout string
	var output string
	var manifest string

	cmd := &cobra.Command{
		Use:   "stitch IMAGE...",
		Short: "Combine images into a single vertical, horizontal or grid composite",
		Long: `Stitch images into one PNG in the order given.

Arguments may be local files or X/Twitter image and post URLs; URLs are
fetched through the same proxy rules the server applies.

  vertical    images share the widest width, stacked top to bottom
  horizontal  images share the tallest height, placed left to right
  grid        near-square grid of equal cells, each image stretched to its cell`,
		Example: `  # Stack two screenshots
  tapthepost stitch a.png b.png

  # 2x2 grid with an imported X image and a YAML manifest
  tapthepost stitch --layout grid a.png b.png c.png https://pbs.twimg.com/media/xyz.jpg --manifest stitch.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseLayoutMode(layout)
			if err != nil {
				return err
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}

			p := cfg.Pipeline(cfg.Fetcher())
			sess := session.New()
			sess.SetLayout(mode)

			for _, arg := range args {
				if isRemote(arg) {
					if _, err := p.Import(cmd.Context(), sess, arg); err != nil {
						return fmt.Errorf("failed to import %s: %w", arg, err)
					}
					continue
				}

				data, err := os.ReadFile(arg)
				if err != nil {
					return fmt.Errorf("failed to read image: %w", err)
				}
				results := p.AddFiles(cmd.Context(), sess, []pipeline.Upload{{Name: filepath.Base(arg), Data: data}})
				if results[0].Err != nil {
					return results[0].Err
				}
			}

			file, spec, err := p.Export(cmd.Context(), sess)
			if err != nil {
				return err
			}

			if output == "" {
				output = file.Name
			}
			if err := os.WriteFile(output, file.Data, 0644); err != nil {
				return fmt.Errorf("failed to write composite: %w", err)
			}
			slog.Info("Composite written", "output", output, "layout", mode, "width", spec.Width, "height", spec.Height)

			if manifest != "" {
				images := sess.Images()
				sources := make([]archive.ManifestSource, len(images))
				for i, img := range images {
					w, h, _ := img.Dimensions()
					sources[i] = archive.ManifestSource{Name: img.Name, Width: w, Height: h}
				}
				if err := archive.SaveManifest(manifest, archive.NewManifest(output, spec, sources, time.Now())); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&layout, "layout", "l", "vertical", "Layout mode (vertical, horizontal, or grid)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "PNG file to write (default stitched-<layout>-<timestamp>.png)")
	cmd.Flags().StringVar(&manifest, "manifest", "", "Also write a YAML manifest of the layout")

	return cmd
}

func isRemote(arg string) bool {
	for _, prefix := range []string{"http://", "https://", "x.com/", "twitter.com/", "pbs.twimg.com/"} {
		if strings.HasPrefix(arg, prefix) {
			return true
		}
	}
	return false
}
