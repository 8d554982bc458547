package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/imagineos/tapthepost/internal/archive"
)

func newSliceCmd(opts *rootOptions) *cobra.Command {
	var output string
	var outputDir string
	var count int

	cmd := &cobra.Command{
		Use:   "slice IMAGE",
		Short: "Split an image into equal horizontal bands",
		Long: `Split one image into equal-height horizontal bands, numbered from the top.

The bands are written as slice-1.jpg ... slice-N.jpg, either bundled into a
zip archive or as loose files in a directory.`,
		Example: `  # Four bands zipped into horizontal-slices.zip
  tapthepost slice post.png

  # Loose files in ./out
  tapthepost slice post.png --dir out`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("count") {
				cfg.SliceCount = count
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			p := cfg.Pipeline(nil)
			result, err := p.SliceImage(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			if outputDir != "" {
				return writeSlices(outputDir, result.Slices)
			}

			if output == "" {
				output = result.Archive.Name
			}
			if err := os.WriteFile(output, result.Archive.Data, 0644); err != nil {
				return fmt.Errorf("failed to write archive: %w", err)
			}

			slog.Info("Slices written", "archive", output, "slices", len(result.Slices))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Zip archive to write (default horizontal-slices.zip)")
	cmd.Flags().StringVar(&outputDir, "dir", "", "Write individual slices to this directory instead of a zip")
	cmd.Flags().IntVar(&count, "count", 4, "Number of slices")

	return cmd
}

func writeSlices(dir string, files []archive.File) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, f.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	slog.Info("Slices written", "dir", dir, "slices", len(files))
	return nil
}
