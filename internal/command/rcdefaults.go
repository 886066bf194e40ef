package command

import "github.com/xanlabs/xan-go/internal/xanconfig"

// rcDefaults holds the .xanrc.yml values loaded once at startup; every
// subcommand's opts struct falls back to these when its own flag was
// left at its zero value, the same override-wins-if-set discipline the
// teacher applies when layering CLI flags over a GeneratorConfig file.
var rcDefaults xanconfig.Config

// SetRCDefaults installs the parsed .xanrc.yml (or a zero Config if
// none was found) for ApplyRCDefaults to consult.
func SetRCDefaults(cfg xanconfig.Config) {
	rcDefaults = cfg
}

// ApplyRCDefaults fills threads/errors-policy/delimiter/seed on o from
// rcDefaults wherever the CLI left them unset, then returns o.
func (o CommonOpts) ApplyRCDefaults() CommonOpts {
	if o.Threads == 0 {
		o.Threads = rcDefaults.Threads
	}
	if o.Delimiter == "" {
		o.Delimiter = rcDefaults.Delimiter
	}
	if o.Seed == 0 {
		o.Seed = rcDefaults.Seed
	}
	if o.Errors == "panic" && rcDefaults.ErrorsMode != "" {
		o.Errors = rcDefaults.ErrorsMode
	}
	return o
}
