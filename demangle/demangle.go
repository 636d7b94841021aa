// Package demangle turns compiler-mangled symbol names into display
// names. It falls back to returning the input unchanged, so it is safe
// to call on already-demangled or plain C names.
package demangle

import "github.com/ianlancetaylor/demangle"

var (
	OptionsUnspecified []demangle.Option = nil
	OptionsNone                          = make([]demangle.Option, 0)
	OptionsSimplified                    = []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams, demangle.NoTemplateParams}
	OptionsTemplates                     = []demangle.Option{demangle.NoParams, demangle.NoEnclosingParams}
	OptionsFull                          = []demangle.Option{demangle.NoClones}
)

func ConvertOptions(o string) []demangle.Option {
	switch o {
	case "none":
		return OptionsNone
	case "simplified":
		return OptionsSimplified
	case "templates":
		return OptionsTemplates
	case "full":
		return OptionsFull
	default:
		return OptionsUnspecified
	}
}

// Demangler demangles GCC/LLVM C++ and Rust symbol names with a fixed
// option set. The zero value demangles with full defaults.
type Demangler struct {
	options []demangle.Option
}

func New(options ...demangle.Option) *Demangler {
	return &Demangler{options: options}
}

// Demangle returns the display name for mangled, or mangled itself when
// it is not a recognized mangling. Idempotent: demangled names pass
// through unchanged.
func (d *Demangler) Demangle(mangled string) string {
	if mangled == "" {
		return ""
	}
	return demangle.Filter(mangled, d.options...)
}

// Filter demangles with the package defaults.
func Filter(mangled string) string {
	return demangle.Filter(mangled)
}
