package recipes

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

var (
	autogen    = []string{"./autogen.sh"}
	dropLongDb = []string{"sed", "-ibak", "-e", "s/-Wno-long-double//g", "configure.ac"}
	autoreconf = []string{"autoreconf", "-fvi"}
)

func gdal(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("gdal",
		"http://download.osgeo.org/gdal/gdal-1.9.0.tar.gz",
		"e2eaaf0fba39137b40c0d3069ac41dfb6f3c76db")
	p.Patches = []string{"gdal"}
	p.Configure = buildsys.Options{
		With: []string{"threads", "libtiff=internal", "libgeotiff=internal", "jpeg", "png", "zlib", "pam"},
		Without: strings.Fields(`bsb cfitsio curl dods-root dwg-plt dwgdirect ecw epsilon expat expat-inc expat-lib fme
			geos gif grass hdf4 hdf5 idb ingres jasper jp2mrsid kakadu libgrass
			macosx-framework mrsid msg mysql netcdf oci oci-include oci-lib odbc ogdi pcidsk
			pcraster perl pg php pymoddir python ruby sde sde-version spatialite sqlite3
			static-proj4 xerces xerces-inc xerces-lib`),
		Disable: []string{"static"},
		Enable:  []string{"shared"},
	}
	p.ConfigureStage = configureAfter(autogen)
	return p, nil
}

// openEXRStage regenerates configure without the -Wno-long-double flag
// newer compilers reject.
func openEXRStage(ctx context.Context, b *build.Context) error {
	b.Env.Set("AUTOHEADER", "true")
	return configureAfter(dropLongDb, autoreconf)(ctx, b)
}

func ilmbase(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("ilmbase",
		"http://download.savannah.nongnu.org/releases/openexr/ilmbase-1.0.2.tar.gz",
		"fe6a910a90cde80137153e25e175e2b211beda36")
	p.Patches = []string{"ilmbase"}
	p.Configure.Disable = []string{"static"}
	p.ConfigureStage = openEXRStage
	return p, nil
}

func openexr(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("openexr",
		"http://download.savannah.nongnu.org/releases/openexr/openexr-1.7.0.tar.gz",
		"91d0d4e69f06de956ec7e0710fc58ec0d4c4dc2b")
	p.Patches = []string{"openexr"}
	p.Configure = buildsys.Options{
		With:    []string{"ilmbase-prefix=%(INSTALL_DIR)s"},
		Disable: []string{"ilmbasetest", "imfexamples", "static"},
	}
	p.ConfigureStage = openEXRStage
	return p, nil
}

func proj(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("proj",
		"http://download.osgeo.org/proj/proj-4.7.0.tar.gz",
		"bfe59b8dc1ea0c57e1426c37ff2b238fea66acd7")
	p.Configure.Disable = []string{"static"}
	return p, nil
}

func curl(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("curl",
		"http://curl.haxx.se/download/curl-7.15.5.tar.gz",
		"32586c893e7d9246284af38d8d0f5082e83959af")
	p.Configure = buildsys.Options{
		Disable: []string{"static", "ldap", "ldaps"},
		Without: []string{"ssl", "libidn"},
	}
	return p, nil
}

func zlib(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("zlib",
		"http://downloads.sourceforge.net/libpng/zlib-1.2.6.tar.gz",
		"38690375d8d42398ce33b2df726e25cacf096496")
	p.Configure.Other = []string{"--shared"}
	return p, nil
}

func jpeg(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("jpeg",
		"http://www.ijg.org/files/jpegsrc.v8a.tar.gz",
		"78077fb22f0b526a506c21199fbca941d5c671a9")
	p.Patches = []string{"jpeg8"}
	p.Configure = buildsys.Options{Enable: []string{"shared"}, Disable: []string{"static"}}
	return p, nil
}

func png(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("png",
		"http://downloads.sourceforge.net/libpng/libpng-1.4.11.tar.bz2",
		"85525715cdaa8c542316436659cada13561663c4")
	p.Configure.Disable = []string{"static"}
	return p, nil
}

func protobuf(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("protobuf",
		"http://protobuf.googlecode.com/files/protobuf-2.4.1.tar.bz2",
		"df5867e37a4b51fb69f53a8baf5b994938691d6d")
	p.ConfigureStage = configureAfter(autogen)
	return p, nil
}

func lapack(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("lapack",
		"http://www.netlib.org/lapack/lapack-3.4.0.tgz",
		"910109a931524f8dcc2734ce23fe927b00ca199f")
	p.System = buildsys.CMake
	p.Configure.Other = []string{
		"-DCMAKE_Fortran_COMPILER=gfortran",
		"-DBUILD_SHARED_LIBS=ON",
		"-DBUILD_STATIC_LIBS=OFF",
		"-DBLAS_LIBRARIES=%(ISIS3RDPARTY)s/libblas.so",
	}
	// Search paths in LDFLAGS make cmake pick up a foreign liblapack.
	p.ConfigureStage = func(ctx context.Context, b *build.Context) error {
		stripped := b.Env.Clone()
		stripped.StripFlags(env.LDFlags, func(f string) bool { return strings.HasPrefix(f, "-L") })
		ldflags, _ := stripped.Lookup(env.LDFlags)
		return b.Configure(ctx, buildsys.Options{}, func(bs buildsys.BuildSystem) {
			bs.Env(env.LDFlags, ldflags)
		})
	}
	return p, nil
}

func boost(_ arch.Arch, e *env.Environment) (*build.Package, error) {
	p := build.NewArchive("boost",
		"http://downloads.sourceforge.net/boost/boost_1_49_0.tar.bz2",
		"26a52840e9d12f829e3008589abf0a925ce88524")
	p.Patches = []string{"boost"}
	e.Set("NO_BZIP2", "1")
	e.Set("NO_ZLIB", "1")

	p.ConfigureStage = func(ctx context.Context, b *build.Context) error {
		toolset := "gcc"
		if b.Arch.OS == "osx" {
			toolset = "darwin"
		}
		flags := b.Env.Clone()
		flags.AppendFlag(env.LDFlags, "-ldl")
		get := func(key string) string {
			if v, ok := flags.Lookup(key); ok {
				return v
			}
			return " "
		}
		jam := fmt.Sprintf("using %s : : %s : <cxxflags>\"%s\" <linkflags>\"%s\" ;\noption.set keep-going : false ;\n",
			toolset, get(env.CXX), get(env.CXXFlags), get(env.LDFlags))
		return b.WriteFile("user-config.jam", jam)
	}
	p.Compile = func(ctx context.Context, b *build.Context) error {
		b.Env.Set("BOOST_ROOT", b.WorkDir)
		if err := b.Run(ctx, "./bootstrap.sh"); err != nil {
			return err
		}
		// bootstrap writes a project config that overrides user-config.jam.
		if err := os.Remove(b.Path("project-config.jam")); err != nil && !os.IsNotExist(err) {
			return err
		}
		args, err := b2Args(b)
		if err != nil {
			return err
		}
		makeOpts, err := b.MakeOpts()
		if err != nil {
			return err
		}
		cmd := append([]string{"./b2"}, makeOpts...)
		cmd = append(cmd, args...)
		return b.Run(ctx, append(cmd, "stage")...)
	}
	p.Install = func(ctx context.Context, b *build.Context) error {
		b.Env.Set("BOOST_ROOT", b.WorkDir)
		args, err := b2Args(b)
		if err != nil {
			return err
		}
		return b.Run(ctx, append(append([]string{"./b2"}, args...), "install")...)
	}
	return p, nil
}

func b2Args(b *build.Context) ([]string, error) {
	prefix, err := b.Env.Get(env.InstallDir)
	if err != nil {
		return nil, err
	}
	return []string{
		"-q", "--user-config=" + b.Path("user-config.jam"),
		"--prefix=" + prefix, "--layout=versioned",
		"threading=multi", "variant=release", "link=shared", "runtime-link=shared",
		"--without-mpi", "--without-python", "--without-wave",
	}, nil
}

func osg(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("osg",
		"http://www.openscenegraph.org/downloads/stable_releases/OpenSceneGraph-2.8.3/source/OpenSceneGraph-2.8.3.zip",
		"90502e4cbd47aac1689cc39d25ab62bbe0bba9fc")
	p.Patches = []string{"osg"}
	p.System = buildsys.CMake
	p.Configure = buildsys.Options{
		With: strings.Fields("GDAL GLUT JPEG OpenEXR PNG ZLIB"),
		Without: strings.Fields(`COLLADA CURL FBX FFmpeg FLTK FOX FreeType GIFLIB Inventor ITK Jasper
			LibVNCServer OpenAL OpenVRML OurDCMTK Performer Qt3 Qt4 SDL TIFF wxWidgets Xine XUL`),
		Other: []string{"-DBUILD_OSG_APPLICATIONS=ON"},
	}
	return p, nil
}

func flann(arch.Arch, *env.Environment) (*build.Package, error) {
	p := build.NewArchive("flann",
		"http://people.cs.ubc.ca/~mariusm/uploads/FLANN/flann-1.7.1-src.zip",
		"61b9858620528919ea60a2a4b085ccc2b3c2d138")
	p.Patches = []string{"flann"}
	p.System = buildsys.CMake
	p.Configure.Other = []string{
		"-DBUILD_C_BINDINGS=OFF",
		"-DBUILD_MATLAB_BINDINGS=OFF",
		"-DBUILD_PYTHON_BINDINGS=OFF",
	}
	return p, nil
}
