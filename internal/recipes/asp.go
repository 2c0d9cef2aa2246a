package recipes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
	"github.com/NeoGeographyToolkit/binarybuilder/pkgs/buildsys"
)

// The Vision Workbench and the Ames Stereo Pipeline build from git and
// describe their dependencies in a generated config.options file.

const configOptions = "config.options"

func prefixed(prefix string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = prefix + n
	}
	return out
}

func withPrefix(names []string, dirVar string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n + "=%(" + dirVar + ")s"
	}
	return out
}

// dirs reads the directories every generated config.options refers to.
type dirs struct {
	install, noinstall, thirdParty string
}

func readDirs(e *env.Environment) (dirs, error) {
	var d dirs
	var err error
	if d.install, err = e.Get(env.InstallDir); err != nil {
		return d, err
	}
	if d.noinstall, err = e.Get(env.NoInstallDir); err != nil {
		return d, err
	}
	d.thirdParty, err = e.Get(env.Isis3rdParty)
	return d, err
}

var (
	vwEnableModules  = strings.Fields("camera mosaic interestpoint cartography hdr stereo geometry tools bundleadjustment")
	vwDisableModules = strings.Fields("gpu plate python gui photometry")
	vwInstallPkgs    = strings.Fields("jpeg png gdal proj4 z ilmbase openexr boost flapack protobuf flann")
)

func visionworkbench(_ arch.Arch, e *env.Environment) (*build.Package, error) {
	// libtool turns the missing -L directory warning into test failures.
	dir, err := e.Get(env.Isis3rdParty)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, build.Configf("ISIS3RDPARTY %s does not exist; is ISISROOT set correctly?", dir)
	}

	p := build.NewGit("visionworkbench", "http://github.com/visionworkbench/visionworkbench.git", "")
	p.Configure = buildsys.Options{
		With:    append(withPrefix(vwInstallPkgs, env.InstallDir), "protobuf=%(INSTALL_DIR)s"),
		Without: strings.Fields("tiff hdf cairomm zeromq rabbitmq_c tcmalloc x11 clapack slapack qt opencv cg"),
		Disable: append([]string{"pkg_paths_default", "static", "qt-qmake"}, prefixed("module-", vwDisableModules)...),
		Enable:  append([]string{"debug=ignore", "optimize=ignore", "as-needed", "no-undefined"}, prefixed("module-", vwEnableModules)...),
	}
	p.ConfigureStage = func(ctx context.Context, b *build.Context) error {
		if err := b.Run(ctx, "./autogen"); err != nil {
			return err
		}
		entries, err := vwConfigOptions(b.Arch, b.Env)
		if err != nil {
			return err
		}
		if err := b.WriteConfigOptions(configOptions, entries); err != nil {
			return err
		}
		return b.Configure(ctx, buildsys.Options{})
	}
	return p, nil
}

func vwConfigOptions(a arch.Arch, e *env.Environment) ([]build.ConfigEntry, error) {
	d, err := readDirs(e)
	if err != nil {
		return nil, err
	}
	lib := filepath.Join(d.install, "lib")
	var entries []build.ConfigEntry
	for _, pkg := range vwInstallPkgs {
		key := "PKG_" + strings.ToUpper(pkg)
		entries = append(entries, build.ConfigEntry{
			Key:   key + "_CPPFLAGS",
			Value: fmt.Sprintf("-I%s -I%s", filepath.Join(d.noinstall, "include"), filepath.Join(d.install, "include")),
		})
		ldflags := fmt.Sprintf("-L%s -L%s", d.thirdParty, lib)
		if pkg == "gdal" && a.OS == "linux" {
			ldflags += " -ljpeg -lpng14 -lz"
		}
		entries = append(entries, build.ConfigEntry{Key: key + "_LDFLAGS", Value: ldflags})
	}
	entries = append(entries, build.ConfigEntry{Key: "PROTOC", Value: filepath.Join(d.install, "bin", "protoc")})
	return entries, nil
}

var (
	aspDisableApps    = strings.Fields("aligndem bundleadjust demprofile geodiff isisadjustcameraerr isisadjustcnetclip plateorthoproject reconstruct results rmax2cahvor rmaxadjust stereogui")
	aspEnableApps     = strings.Fields("bundlevis disparitydebug hsvmerge isisadjust orbitviz orthoproject point2dem point2mesh stereo mer2camera")
	aspDisableModules = strings.Fields("photometrytk controlnettk mpi")
	aspEnableModules  = strings.Fields("core spiceio isisio sessions")
	aspInstallPkgs    = strings.Fields(`boost vw_core vw_math vw_image vw_fileio vw_camera
		vw_stereo vw_cartography vw_interest_point openscenegraph
		flapack arbitrary_qt curl ufconfig amd colamd cholmod flann`)
	aspQtModules = strings.Fields("QtCore QtGui QtNetwork QtSql QtSvg QtXml QtXmlPatterns")
)

func aspNoinstallPkgs(a arch.Arch) []string {
	pkgs := strings.Fields("spice qwt gsl geos xercesc kakadu protobuf")
	if a.OS == "linux" {
		pkgs = append(pkgs, "superlu")
	}
	return pkgs
}

func stereopipeline(a arch.Arch, _ *env.Environment) (*build.Package, error) {
	p := build.NewGit("stereopipeline", "http://github.com/NeoGeographyToolkit/StereoPipeline.git", "")
	with := withPrefix(aspInstallPkgs, env.InstallDir)
	with = append(with, withPrefix(aspNoinstallPkgs(a), env.NoInstallDir)...)
	with = append(with, "isis=%(ISISROOT)s")
	p.Configure = buildsys.Options{
		Other:   []string{"docdir=%(INSTALL_DIR)s/doc"},
		With:    with,
		Without: []string{"clapack", "slapack"},
		Disable: concat([]string{"pkg_paths_default", "static", "qt-qmake"},
			prefixed("app-", aspDisableApps), prefixed("module-", aspDisableModules)),
		Enable: concat([]string{"debug=ignore", "optimize=ignore"},
			prefixed("app-", aspEnableApps), prefixed("module-", aspEnableModules)),
	}
	p.ConfigureStage = func(ctx context.Context, b *build.Context) error {
		if err := b.Run(ctx, "./autogen"); err != nil {
			return err
		}
		entries, err := aspConfigOptions(b.Arch, b.Env)
		if err != nil {
			return err
		}
		if err := b.WriteConfigOptions(configOptions, entries); err != nil {
			return err
		}
		return b.Configure(ctx, buildsys.Options{})
	}
	return p, nil
}

func aspConfigOptions(a arch.Arch, e *env.Environment) ([]build.ConfigEntry, error) {
	d, err := readDirs(e)
	if err != nil {
		return nil, err
	}
	lib := filepath.Join(d.install, "lib")
	include := filepath.Join(d.noinstall, "include")

	var entries []build.ConfigEntry
	for _, pkg := range append(append([]string(nil), aspInstallPkgs...), aspNoinstallPkgs(a)...) {
		ldflags := fmt.Sprintf("-L%s -L%s", d.thirdParty, lib)
		if a.OS == "osx" {
			ldflags += fmt.Sprintf(" -F%s -F%s", d.thirdParty, lib)
		}
		entries = append(entries, build.ConfigEntry{Key: "PKG_" + strings.ToUpper(pkg) + "_LDFLAGS", Value: ldflags})
	}

	libload := "-l"
	if a.OS == "osx" {
		libload = "-framework "
	}
	cppflags := []string{"-I" + include}
	var libs []string
	for _, m := range aspQtModules {
		cppflags = append(cppflags, "-I"+filepath.Join(include, m))
		libs = append(libs, libload+m)
	}
	entries = append(entries,
		build.ConfigEntry{Key: "QT_ARBITRARY_MODULES", Value: strings.Join(aspQtModules, " ")},
		build.ConfigEntry{Key: "PKG_ARBITRARY_QT_CPPFLAGS", Value: strings.Join(cppflags, " ")},
		build.ConfigEntry{Key: "PKG_ARBITRARY_QT_LIBS", Value: strings.Join(libs, " ")},
		build.ConfigEntry{Key: "PKG_ARBITRARY_QT_MORE_LIBS", Value: "-lpng -lz"},
	)

	switch a.OS {
	case "linux":
		matches, err := filepath.Glob(filepath.Join(d.thirdParty, "libsuperlu*.a"))
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, build.Configf("no static superlu library in %s", d.thirdParty)
		}
		entries = append(entries,
			build.ConfigEntry{Key: "PKG_SUPERLU_STATIC_LIBS", Value: matches[0]},
			build.ConfigEntry{Key: "PKG_GEOS_LIBS", Value: "-lgeos-3.3.2"},
		)
	case "osx":
		entries = append(entries,
			build.ConfigEntry{Key: "HAVE_PKG_SUPERLU", Value: "no"},
			build.ConfigEntry{Key: "PKG_GEOS_LIBS", Value: "-lgeos-3.3.1"},
		)
	}
	entries = append(entries, build.ConfigEntry{Key: "PROTOC", Value: filepath.Join(d.install, "bin", "protoc")})
	return entries, nil
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
