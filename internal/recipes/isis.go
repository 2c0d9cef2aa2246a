package recipes

import (
	"github.com/NeoGeographyToolkit/binarybuilder/internal/arch"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/build"
	"github.com/NeoGeographyToolkit/binarybuilder/internal/env"
)

// isisVariants lists the rsync modules of the USGS ISIS distribution.
// Distribution entries win over the os+bits fallbacks.
var isisVariants = arch.Variants[string]{
	"linux64": "isisdist.astrogeology.usgs.gov::x86-64_linux_RHEL6/isis/",
	"osx64":   "isisdist.astrogeology.usgs.gov::x86-64_darwin_OSX/isis/",
	"osx32":   "isisdist.astrogeology.usgs.gov::x86-64_darwin_OSX/isis/",

	"ubuntu":        "isisdist.astrogeology.usgs.gov::x86-64_linux_UBUNTU/isis/",
	"opensuse":      "isisdist.astrogeology.usgs.gov::x86-64_linux_SUSE11/isis/",
	"opensuse-leap": "isisdist.astrogeology.usgs.gov::x86-64_linux_SUSE11/isis/",
	"sles":          "isisdist.astrogeology.usgs.gov::x86-64_linux_SUSE11/isis/",
	"fedora":        "isisdist.astrogeology.usgs.gov::x86-64_linux_FEDORA/isis/",
	"debian":        "isisdist.astrogeology.usgs.gov::x86-64_linux_DEBIAN/isis/",
}

const (
	isisRoot     = "%(" + env.IsisRoot + ")s"
	isis3rdParty = "%(" + env.Isis3rdParty + ")s"
)

// isis mirrors the prebuilt ISIS tree for the host into ISISROOT. The
// package name carries the variant key so mirrors of different
// distributions never share a cache directory.
func isis(a arch.Arch, _ *env.Environment) (*build.Package, error) {
	src, key, err := isisVariants.Lookup(a)
	if err != nil {
		return nil, err
	}
	return build.NewRemoteSync("isis_"+key, src, isisRoot, isis3rdParty), nil
}

// isisLocal uses the ISIS already installed in ISISROOT and only repairs
// its third-party libraries.
func isisLocal(arch.Arch, *env.Environment) (*build.Package, error) {
	return build.NewLocal("isis_local", isis3rdParty), nil
}
