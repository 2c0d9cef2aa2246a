// Package recipes holds the package set binarybuilder ships with and the
// order it builds them in when no names are given.
package recipes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

// DefaultOrder is built when no package names are requested. The isis
// third-party tree comes first since most later packages link against it.
var DefaultOrder = []string{
	"gsl_headers", "geos_headers", "superlu_headers", "xercesc_headers",
	"qt_headers", "qwt_headers", "cspice_headers", "isis",
	"zlib", "png", "jpeg", "proj", "gdal", "ilmbase", "openexr",
	"boost", "osg", "lapack", "visionworkbench", "stereopipeline",
}

var all = map[string]build.Constructor{
	"gdal":     gdal,
	"ilmbase":  ilmbase,
	"openexr":  openexr,
	"proj":     proj,
	"curl":     curl,
	"zlib":     zlib,
	"jpeg":     jpeg,
	"png":      png,
	"protobuf": protobuf,
	"lapack":   lapack,
	"boost":    boost,
	"osg":      osg,
	"flann":    flann,

	"gsl_headers":     gslHeaders,
	"geos_headers":    geosHeaders,
	"superlu_headers": superluHeaders,
	"xercesc_headers": xercescHeaders,
	"qt_headers":      qtHeaders,
	"qwt_headers":     qwtHeaders,
	"zlib_headers":    zlibHeaders,
	"jpeg_headers":    jpegHeaders,
	"png_headers":     pngHeaders,
	"cspice_headers":  cspiceHeaders,

	"isis":       isis,
	"isis_local": isisLocal,

	"visionworkbench": visionworkbench,
	"stereopipeline":  stereopipeline,
}

// Register adds every recipe to r and makes DefaultOrder its default list.
func Register(r *build.Registry) error {
	for name, c := range all {
		r.Register(name, c)
	}
	return r.SetDefault(DefaultOrder...)
}

// NewRegistry returns a registry holding every recipe.
func NewRegistry() (*build.Registry, error) {
	r := build.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// configureAfter runs cmds in the working directory, then the default
// configure with the package's options.
func configureAfter(cmds ...[]string) build.StageFunc {
	return func(ctx context.Context, b *build.Context) error {
		for _, c := range cmds {
			if err := b.Run(ctx, c...); err != nil {
				return err
			}
		}
		return b.Configure(ctx, buildsys.Options{})
	}
}

// copyHeaders copies the files matching patterns (relative to the working
// directory) into the rendered dest directory. Every pattern must match.
func copyHeaders(ctx context.Context, b *build.Context, dest string, patterns ...string) error {
	dir, err := b.Render(dest)
	if err != nil {
		return err
	}
	var files []string
	for _, pat := range patterns {
		matches, err := b.Glob(pat)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files match %s", filepath.Join(b.WorkDir, pat))
		}
		files = append(files, matches...)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	args := append([]string{"cp", "-vf"}, files...)
	return b.Run(ctx, append(args, dir)...)
}
