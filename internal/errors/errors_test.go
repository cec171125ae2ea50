package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_PreservesCode(t *testing.T) {
	base := ResourceExhaustedf("actor %s has no wear left", "a-1").WithMeta("actor_id", "a-1")
	wrapped := Wrapf(base, "open window for %s", "a-1")

	assert.True(t, IsResourceExhausted(wrapped))
	assert.Equal(t, CodeResourceExhausted, GetCode(wrapped))
	assert.Equal(t, "a-1", GetMeta(wrapped)["actor_id"])
	assert.Contains(t, wrapped.Error(), "no wear left")
}

func TestWrap_ForeignError(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "perform")
	assert.Equal(t, CodeUnknown, GetCode(wrapped))

	perform := Perform(fmt.Errorf("boom"), "perform strike")
	assert.Equal(t, CodePerform, GetCode(perform))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsPermissionDenied(PermissionDenied("driver only")))
	assert.True(t, IsResolution(Resolutionf("unknown key %q", "x")))
	assert.True(t, IsNotFound(NotFoundf("missing %s", "y")))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}
