package build

import (
	"strings"

	"github.com/google/renameio"
)

// ConfigEntry is one KEY="value" line of a generated configuration file.
type ConfigEntry struct {
	Key   string
	Value string
}

var configQuoter = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// FormatConfigOptions renders entries as shell-style assignments, one per
// line, in the given order.
func FormatConfigOptions(entries []ConfigEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Key)
		b.WriteString(`="`)
		b.WriteString(configQuoter.Replace(e.Value))
		b.WriteString("\"\n")
	}
	return b.String()
}

// WriteConfigOptions atomically writes entries to name in the working
// directory.
func (b *Context) WriteConfigOptions(name string, entries []ConfigEntry) error {
	return b.WriteFile(name, FormatConfigOptions(entries))
}

// WriteFile atomically writes content to name in the working directory.
func (b *Context) WriteFile(name, content string) error {
	return renameio.WriteFile(b.Path(name), []byte(content), 0o644)
}
