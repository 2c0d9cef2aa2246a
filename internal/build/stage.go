package build

import (
	"fmt"
	"strings"
)

// Stage is one step of a package lifecycle.
type Stage int

const (
	Fetch Stage = iota
	Unpack
	Patch
	Configure
	Compile
	Install
)

// Stages lists every stage in execution order.
var Stages = []Stage{Fetch, Unpack, Patch, Configure, Compile, Install}

var stageNames = [...]string{"fetch", "unpack", "patch", "configure", "compile", "install"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage returns the stage with the given name.
func ParseStage(name string) (Stage, error) {
	for i, n := range stageNames {
		if strings.EqualFold(n, name) {
			return Stage(i), nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q (want one of %s)", name, strings.Join(stageNames[:], ", "))
}
