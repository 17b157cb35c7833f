package item

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInput_Normalise(t *testing.T) {
	in := Input{Name: "\t widget \n"}
	require.NoError(t, in.Normalise())
	assert.Equal(t, "widget", in.Name)

	multiByte := Input{Name: strings.Repeat("é", MaxNameLength)}
	assert.NoError(t, multiByte.Normalise(), "limit counts characters, not bytes")
}

func TestPatch_Normalise(t *testing.T) {
	name := "  renamed "
	p := Patch{Name: &name}
	require.NoError(t, p.Normalise())
	assert.Equal(t, "renamed", *p.Name)

	var empty Patch
	err := empty.Normalise()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name is required", verr.Error())
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(ActionCreated, Item{ID: "itm-1", OwnerID: "1", Name: "x"})
	assert.Equal(t, ActionCreated, ev.Action)
	assert.Equal(t, "1", ev.OwnerID)
	assert.False(t, ev.Timestamp.IsZero())
}
