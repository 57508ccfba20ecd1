package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvPrefix_DerivesFromExecutableBasename(t *testing.T) {
	s := &Spec{Cmd: []string{"/usr/local/bin/ruff", "check"}}
	assert.Equal(t, "RUFF_", s.EnvPrefix())
}

func TestEnvPrefix_EmptyWhenNoCmd(t *testing.T) {
	s := &Spec{}
	assert.Equal(t, "", s.EnvPrefix())
}

func TestCommandFor_FormatterCheckFallsBackToCmd(t *testing.T) {
	s := &Spec{Kind: Formatter, Cmd: []string{"black", "."}}
	assert.Equal(t, []string{"black", "."}, s.CommandFor(ModeCheck))
}

func TestCommandFor_FormatterUsesExplicitCheck(t *testing.T) {
	s := &Spec{Kind: Formatter, Cmd: []string{"black", "."}, Check: []string{"black", "--check", "."}}
	assert.Equal(t, []string{"black", "--check", "."}, s.CommandFor(ModeCheck))
}

func TestCommandFor_LinterFixFallsBackToCmd(t *testing.T) {
	s := &Spec{Kind: Linter, Cmd: []string{"ruff", "check"}}
	assert.Equal(t, []string{"ruff", "check"}, s.CommandFor(ModeFix))
}

func TestCommandFor_LinterUsesExplicitFix(t *testing.T) {
	s := &Spec{Kind: Linter, Cmd: []string{"ruff", "check"}, Fix: []string{"ruff", "check", "--fix"}}
	assert.Equal(t, []string{"ruff", "check", "--fix"}, s.CommandFor(ModeFix))
}

func TestAppliesToMode_FormatModeRestrictsToFormatters(t *testing.T) {
	linter := &Spec{Kind: Linter}
	formatter := &Spec{Kind: Formatter}

	assert.False(t, linter.AppliesToMode(ModeFormat))
	assert.True(t, formatter.AppliesToMode(ModeFormat))
	assert.True(t, linter.AppliesToMode(ModeRun))
	assert.True(t, formatter.AppliesToMode(ModeCheck))
}
