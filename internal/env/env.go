package env

import (
	"os"
	"path/filepath"
)

// Well-known variable names shared by the engine and the recipes.
const (
	InstallDir   = "INSTALL_DIR"
	NoInstallDir = "NOINSTALL_DIR"
	BuildDir     = "BUILD_DIR"
	DownloadDir  = "DOWNLOAD_DIR"
	PatchesDir   = "PATCHES_DIR"
	IsisRoot     = "ISISROOT"
	Isis3rdParty = "ISIS3RDPARTY"
	MakeOpts     = "MAKEOPTS"
	Path         = "PATH"
	Home         = "HOME"
	CC           = "CC"
	CXX          = "CXX"
	CFlags       = "CFLAGS"
	CXXFlags     = "CXXFLAGS"
	CPPFlags     = "CPPFLAGS"
	LDFlags      = "LDFLAGS"
)

// WorkDir returns the root directory under which binarybuilder keeps its
// build, install and download trees unless configured otherwise.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, "binarybuilder"), nil
}
