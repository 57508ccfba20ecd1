package warnings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmit_DenyLevelSetsDenied(t *testing.T) {
	r := New(nil, nil, []string{NoFiles}, nil)
	assert.False(t, r.Denied())

	r.Emit(NoFiles, "lint: no files matched")
	assert.True(t, r.Denied())
}

func TestEmit_AllowOverridesDefault(t *testing.T) {
	r := New([]string{Mtime}, nil, nil, nil)
	r.Emit(Mtime, "mtime tier disabled")
	assert.False(t, r.Denied())
}

func TestEmit_UnknownNameFallsBackToUnknownWarning(t *testing.T) {
	r := New(nil, nil, []string{UnknownWarning}, nil)
	r.Emit("not-a-real-warning", "detail")
	assert.True(t, r.Denied())
}

func TestNew_DenyOverridesAllow(t *testing.T) {
	// Later list wins when a name appears in both: deny is applied after
	// allow in New, so deny should win for the same name.
	r := New([]string{CacheFull}, nil, []string{CacheFull}, nil)
	r.Emit(CacheFull, "over budget")
	assert.True(t, r.Denied())
}
