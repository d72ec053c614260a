package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/earth-archive/eo3pack/internal/assemble"
	"github.com/earth-archive/eo3pack/internal/documents"
	"github.com/earth-archive/eo3pack/internal/eo3"
	"github.com/earth-archive/eo3pack/internal/landsat"
	"github.com/earth-archive/eo3pack/internal/notification"
	"github.com/earth-archive/eo3pack/internal/properties"
	"github.com/earth-archive/eo3pack/internal/raster"
	"github.com/earth-archive/eo3pack/internal/wagl"
)

func printBanner() {
	banner := figure.NewFigure("eo3pack", "isometric1", true)
	color.Cyan(banner.String())
	fmt.Println()
}

// assembleOptions maps environment configuration and shared flags onto
// the package assembler.
func assembleOptions(defaultGridFootprint bool) []assemble.Option {
	var opts []assemble.Option
	if uri := properties.CollectionURIPrefix(); uri != "" {
		opts = append(opts, assemble.WithBaseURI(uri))
	}
	if n := properties.ChecksumWorkers(); n > 0 {
		opts = append(opts, assemble.WithWorkers(n))
	}
	if defaultGridFootprint {
		opts = append(opts, assemble.WithRegionOptions(eo3.WithDefaultGridReference()))
	}
	return opts
}

func newLandsatCommand() *cobra.Command {
	var (
		outputDir            string
		producer             string
		jobs                 int
		defaultGridFootprint bool
	)
	cmd := &cobra.Command{
		Use:   "landsat [flags] DATASET...",
		Short: "Package USGS Landsat Level-2 datasets as eo3",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir == "" {
				return fmt.Errorf("no output directory: pass --output or set EO3PACK_OUTPUT_PATH")
			}
			opener := raster.NewOpener()
			opts := assembleOptions(defaultGridFootprint)

			var mu sync.Mutex
			var packaged []string
			var g errgroup.Group
			g.SetLimit(jobs)
			for _, dataset := range args {
				g.Go(func() error {
					id, metadataPath, err := landsat.Prepare(dataset, outputDir, producer, opener, opts...)
					if err != nil {
						return fmt.Errorf("packaging %q: %w", dataset, err)
					}
					mu.Lock()
					packaged = append(packaged, metadataPath)
					mu.Unlock()
					color.Green("%s  %s", id, metadataPath)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				notification.SendDiscordErrorNotification(fmt.Sprintf("Landsat packaging failed: %s", err.Error()))
				return err
			}
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Packaged %d Landsat datasets:\n%s",
				len(packaged), strings.Join(packaged, "\n")))
			return nil
		},
	}
	cmd.Flags().StringVar(&outputDir, "output", properties.OutputPath(), "collection root to write packages under")
	cmd.Flags().StringVar(&producer, "producer", "usgs.gov", "organisation that produced the data")
	cmd.Flags().IntVar(&jobs, "jobs", 4, "datasets to package concurrently")
	cmd.Flags().BoolVar(&defaultGridFootprint, "default-grid-footprint", false,
		"reference the footprint against the default grid instead of the last-read raster")
	return cmd
}

func newWaglCommand() *cobra.Command {
	opts := wagl.Options{}
	var (
		defaultGridFootprint bool
		thumbnail            []string
	)
	cmd := &cobra.Command{
		Use:   "wagl [flags] GRANULE.wagl.h5",
		Short: "Package a wagl HDF5 granule as an eo3 ARD dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.HDF5Path = args[0]
			if opts.OutputDir == "" {
				return fmt.Errorf("no output directory: pass --output or set EO3PACK_OUTPUT_PATH")
			}
			if g := opts.GranuleName; g != "" {
				color.Cyan("Packaging %s", wagl.L1ToARD(g))
			} else if g, err := wagl.GranuleFromFilename(opts.HDF5Path); err == nil {
				color.Cyan("Packaging %s", wagl.L1ToARD(g))
			}
			opts.Assemble = assembleOptions(defaultGridFootprint)
			if len(thumbnail) > 0 {
				if len(thumbnail) != 3 {
					return fmt.Errorf("--thumbnail wants three measurement names, got %d", len(thumbnail))
				}
				opts.Assemble = append(opts.Assemble, assemble.WithThumbnail(thumbnail[0], thumbnail[1], thumbnail[2]))
			}
			id, metadataPath, err := wagl.Package(opts)
			if err != nil {
				notification.SendDiscordErrorNotification(fmt.Sprintf("ARD packaging failed: %s", err.Error()))
				return err
			}
			color.Green("%s  %s", id, metadataPath)
			notification.SendDiscordSuccessNotification(fmt.Sprintf("Packaged ARD dataset %s:\n%s", id, metadataPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Level1MetadataPath, "level1", "", "path to the source level-1 metadata document")
	cmd.Flags().StringVar(&opts.OutputDir, "output", properties.OutputPath(), "collection root to write the package under")
	cmd.Flags().StringVar(&opts.GranuleName, "granule", "", "granule to package (default: from the filename)")
	cmd.Flags().StringSliceVar(&opts.Products, "products", nil, "products to package (default: NBAR,NBART)")
	cmd.Flags().StringVar(&opts.FmaskImage, "fmask-image", "", "fmask classification image (default: granule sibling)")
	cmd.Flags().StringVar(&opts.FmaskDoc, "fmask-doc", "", "fmask summary document (default: granule sibling)")
	cmd.Flags().StringVar(&opts.GQADoc, "gqa-doc", "", "geometric quality document (default: granule sibling)")
	cmd.Flags().StringVar(&opts.WaglDoc, "wagl-doc", "", "wagl processing metadata document")
	cmd.Flags().BoolVar(&opts.IncludeOA, "with-oa", false, "package observation attributes and fmask")
	cmd.Flags().BoolVar(&defaultGridFootprint, "default-grid-footprint", false,
		"reference the footprint against the default grid instead of the last-read raster")
	cmd.Flags().StringSliceVar(&thumbnail, "thumbnail", nil,
		"red,green,blue measurement names for the quicklook, e.g. nbar:band04,nbar:band03,nbar:band02")
	cmd.MarkFlagRequired("level1")
	return cmd
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify PACKAGE_DIR|MANIFEST.sha1",
		Short: "Re-hash a package against its checksum manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest := args[0]
			if info, err := os.Stat(manifest); err == nil && info.IsDir() {
				matches, _ := filepath.Glob(filepath.Join(manifest, "*.sha1"))
				if len(matches) != 1 {
					return fmt.Errorf("expected one checksum manifest in %q, found %d", manifest, len(matches))
				}
				manifest = matches[0]
			}
			mismatched, err := documents.VerifyManifest(manifest)
			if err != nil {
				return err
			}
			if len(mismatched) > 0 {
				for _, path := range mismatched {
					color.Red("mismatch: %s", path)
				}
				return fmt.Errorf("%d files failed verification", len(mismatched))
			}
			color.Green("all files verified")
			return nil
		},
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			color.Red("PANIC: %v", r)
			notification.SendDiscordErrorNotification(fmt.Sprintf("eo3pack panic:\n\n%v\n\nStack trace:\n%s", r, debug.Stack()))
			os.Exit(2)
		}
	}()

	if err := godotenv.Load(); err != nil {
		godotenv.Load(filepath.Join("..", ".env"))
	}
	printBanner()

	root := &cobra.Command{
		Use:           "eo3pack",
		Short:         "Prepare, package and verify eo3 earth-observation datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newLandsatCommand(), newWaglCommand(), newVerifyCommand())

	if err := root.Execute(); err != nil {
		color.Red("%s", err.Error())
		os.Exit(1)
	}
}
