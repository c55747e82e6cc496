package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the parsed command line
type AppOptions struct {
	ConfigFile string
	InputFile  string
	OutputDir  string
	TileID     string
	Zoom       int
	Workers    int
	Gzip       bool
	Preview    string
	Verbose    bool
	InitConfig string
}

// AppRunner is the part of App driven by the command line
type AppRunner interface {
	ApplyOptions(opts AppOptions)
	RunTile(id string) error
	RunZoom(z int) error
	RunInitConfig(path string) error
}

func run(args []string, out io.Writer, app AppRunner) error {
	fs := flag.NewFlagSet("coastile", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file")
	fs.StringVar(&opts.InputFile, "input", "", "GeoJSON FeatureCollection (WGS84) with the source features")
	fs.StringVar(&opts.OutputDir, "output", "tiles", "Directory receiving z/x/y.pbf files")
	fs.StringVar(&opts.TileID, "tile", "", "Build a single tile: z/x/y")
	fs.IntVar(&opts.Zoom, "zoom", -1, "Build every tile covering the input at this zoom")
	fs.IntVar(&opts.Workers, "workers", 0, "Concurrent tile builds for -zoom (default: number of CPUs)")
	fs.BoolVar(&opts.Gzip, "gzip", false, "Gzip tiles (overrides config when set)")
	fs.StringVar(&opts.Preview, "preview", "", "Also write a preview next to each tile: svg or png")
	fs.BoolVar(&opts.Verbose, "verbose", false, "Enable debug logging")
	fs.StringVar(&opts.InitConfig, "init-config", "", "Write an example configuration to this path and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.Preview != "" && opts.Preview != "svg" && opts.Preview != "png" {
		return errors.Newf("invalid -preview %q: want svg or png", opts.Preview)
	}

	fmt.Fprintf(out, "coastile version: %s\n", Version)
	app.ApplyOptions(opts)

	switch {
	case opts.InitConfig != "":
		return app.RunInitConfig(opts.InitConfig)
	case opts.TileID != "":
		return app.RunTile(opts.TileID)
	case opts.Zoom >= 0:
		return app.RunZoom(opts.Zoom)
	}

	fmt.Fprintln(out, "Nothing to do.")
	fmt.Fprintln(out, "Use -tile z/x/y -input data.geojson to build one tile")
	fmt.Fprintln(out, "Use -zoom N -input data.geojson to build every tile covering the data")
	fmt.Fprintln(out, "Use -init-config config.yaml to write an example configuration")
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}
