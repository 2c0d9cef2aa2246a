package recipes

import (
	"context"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/fetch"
)

// Header packages install into NOINSTALL_DIR: the stereo pipeline compiles
// against them while linking the libraries shipped in ISIS3RDPARTY.

const noinstallInclude = "%(NOINSTALL_DIR)s/include"

func gslHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	return build.NewHeaders("gsl_headers",
		"ftp://ftp.gnu.org/gnu/gsl/gsl-1.15.tar.gz",
		"d914f84b39a5274b0a589d9b83a66f44cd17ca8e"), nil
}

var geosVariants = arch.Variants[arch.Locator]{
	"osx32":   {Src: "http://download.osgeo.org/geos/geos-3.3.1.tar.bz2", Checksum: "4f89e62c636dbf3e5d7e1bfcd6d9a7bff1bcfa60"},
	"osx64":   {Src: "http://download.osgeo.org/geos/geos-3.3.1.tar.bz2", Checksum: "4f89e62c636dbf3e5d7e1bfcd6d9a7bff1bcfa60"},
	"linux32": {Src: "http://download.osgeo.org/geos/geos-3.3.2.tar.bz2", Checksum: "942b0bbc61a059bd5269fddd4c0b44a508670cb3"},
	"linux64": {Src: "http://download.osgeo.org/geos/geos-3.3.2.tar.bz2", Checksum: "942b0bbc61a059bd5269fddd4c0b44a508670cb3"},
}

func geosHeaders(a arch.Arch, _ *env.Environment) (*build.Package, error) {
	loc, _, err := geosVariants.Lookup(a)
	if err != nil {
		return nil, err
	}
	p := build.NewHeaders("geos_headers", loc.Src, loc.Checksum)
	p.Configure.Disable = []string{"python", "ruby"}
	return p, nil
}

func superluHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewHeaders("superlu_headers",
		"http://crd-legacy.lbl.gov/~xiaoye/SuperLU/superlu_4.3.tar.gz",
		"d2863610d8c545d250ffd020b8e74dc667d7cbdd")
	p.ConfigureStage = build.Noop
	p.Install = func(ctx context.Context, b *build.Context) error {
		return copyHeaders(ctx, b, noinstallInclude+"/SRC", "SRC/*.h")
	}
	return p, nil
}

func xercescHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	return build.NewHeaders("xercesc_headers",
		"http://download.nextag.com/apache//xerces/c/3/sources/xerces-c-3.1.1.tar.gz",
		"177ec838c5119df57ec77eddec9a29f7e754c8b2"), nil
}

var qtVariants = arch.Variants[arch.Locator]{
	"osx32":   {Src: "http://get.qt.nokia.com/qt/source/qt-everywhere-opensource-src-4.7.4.tar.gz", Checksum: "af9016aa924a577f7b06ffd28c9773b56d74c939"},
	"osx64":   {Src: "http://get.qt.nokia.com/qt/source/qt-everywhere-opensource-src-4.7.4.tar.gz", Checksum: "af9016aa924a577f7b06ffd28c9773b56d74c939"},
	"linux32": {Src: "http://get.qt.nokia.com/qt/source/qt-everywhere-opensource-src-4.8.0.tar.gz", Checksum: "2ba35adca8fb9c66a58eca61a15b21df6213f22e"},
	"linux64": {Src: "http://get.qt.nokia.com/qt/source/qt-everywhere-opensource-src-4.8.0.tar.gz", Checksum: "2ba35adca8fb9c66a58eca61a15b21df6213f22e"},
}

func qtHeaders(a arch.Arch, _ *env.Environment) (*build.Package, error) {
	loc, _, err := qtVariants.Lookup(a)
	if err != nil {
		return nil, err
	}
	p := build.NewHeaders("qt_headers", loc.Src, loc.Checksum)
	p.ConfigureStage = func(ctx context.Context, b *build.Context) error {
		args := strings.Fields("./configure -opensource -fast -confirm-license -nomake demos -nomake examples -nomake docs -nomake tools -nomake translations")
		if b.Arch.OS == "osx" {
			args = append(args, "-no-framework")
		}
		return b.Run(ctx, args...)
	}
	// Only the generated include tree is kept; nothing is compiled.
	p.Install = func(ctx context.Context, b *build.Context) error {
		dest, err := b.Env.Get(env.NoInstallDir)
		if err != nil {
			return err
		}
		return b.CopyTree(ctx, b.WorkDir+"/", dest+"/", fetch.CopyOptions{
			Args: []string{
				"-m", "--copy-unsafe-links",
				"--include=**/include/**", "--include=*.h", "--include=*/",
				"--exclude=*",
			},
		})
	}
	return p, nil
}

func qwtHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewHeaders("qwt_headers",
		"http://downloads.sourceforge.net/qwt/qwt-6.0.1.tar.bz2",
		"301cca0c49c7efc14363b42e082b09056178973e")
	p.ConfigureStage = build.Noop
	p.Install = func(ctx context.Context, b *build.Context) error {
		return copyHeaders(ctx, b, noinstallInclude, "src/*.h")
	}
	return p, nil
}

func zlibHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewHeaders("zlib_headers",
		"http://downloads.sourceforge.net/libpng/zlib-1.2.6.tar.gz",
		"38690375d8d42398ce33b2df726e25cacf096496")
	p.Configure.Other = []string{"--shared"}
	p.Install = func(ctx context.Context, b *build.Context) error {
		return copyHeaders(ctx, b, noinstallInclude, "zlib.h", "zconf.h")
	}
	return p, nil
}

func jpegHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewHeaders("jpeg_headers",
		"http://www.ijg.org/files/jpegsrc.v8a.tar.gz",
		"78077fb22f0b526a506c21199fbca941d5c671a9")
	p.Patches = []string{"jpeg8"}
	p.Configure.Enable = []string{"shared"}
	p.Configure.Disable = []string{"static"}
	return p, nil
}

func pngHeaders(arch.Arch, *env.Environment) (*build.Package, error) {
	return build.NewHeaders("png_headers",
		"http://downloads.sourceforge.net/libpng/libpng-1.4.11.tar.bz2",
		"85525715cdaa8c542316436659cada13561663c4"), nil
}

// cspice tarballs are unversioned; these checksums pin toolkit N0064.
var cspiceVariants = arch.Variants[arch.Locator]{
	"linux64": {
		Src:      "ftp://naif.jpl.nasa.gov/pub/naif/toolkit/C/PC_Linux_GCC_64bit/packages/cspice.tar.Z",
		Checksum: "29e3bdea10fd4005a4db8934b8d953c116a2cec7",
	},
	"linux32": {
		Src:      "ftp://naif.jpl.nasa.gov/pub/naif/toolkit/C/PC_Linux_GCC_32bit/packages/cspice.tar.Z",
		Checksum: "df8ad284db3efef912a0a3090acedd2c4561a25f",
	},
	"osx32": {
		Src:      "ftp://naif.jpl.nasa.gov/pub/naif/toolkit/C/MacIntel_OSX_AppleC_32bit/packages/cspice.tar.Z",
		Checksum: "3a1174d0b5ca183168115d8259901e923b97eec0",
	},
}

func cspiceHeaders(a arch.Arch, _ *env.Environment) (*build.Package, error) {
	loc, _, err := cspiceVariants.Lookup(a)
	if err != nil {
		return nil, err
	}
	p := build.NewHeaders("cspice_headers_"+a.OSBits(), loc.Src, loc.Checksum)
	p.ConfigureStage = build.Noop
	p.Install = func(ctx context.Context, b *build.Context) error {
		return copyHeaders(ctx, b, noinstallInclude+"/naif", "include/*.h")
	}
	return p, nil
}
