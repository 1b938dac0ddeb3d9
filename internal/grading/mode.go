package grading

import "github.com/rs/zerolog"

// Mode controls how much rubric detail and reference material is
// disclosed to the grading model. Modes are strictly nested: everything
// basic shows, standard shows too, and full shows everything.
type Mode string

const (
	ModeBasic    Mode = "basic"
	ModeStandard Mode = "standard"
	ModeFull     Mode = "full"
)

// includesCriteria reports whether rubric criteria and instructions are
// disclosed in this mode.
func (m Mode) includesCriteria() bool {
	return m == ModeStandard || m == ModeFull
}

// includesAnswerKey reports whether reference answers are disclosed.
func (m Mode) includesAnswerKey() bool {
	return m == ModeFull
}

// ParseMode normalizes a mode string. Unknown values fall back to full
// with a warning rather than failing the run.
func ParseMode(s string, logger zerolog.Logger) Mode {
	switch Mode(s) {
	case ModeBasic, ModeStandard, ModeFull:
		return Mode(s)
	}

	logger.Warn().Str("mode", s).Msg("unknown grading mode, using full")

	return ModeFull
}
