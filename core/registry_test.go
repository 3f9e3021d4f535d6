package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
	}{
		{"no roles", nil},
		{"empty role", []string{"A", ""}},
		{"whitespace role", []string{" A"}},
		{"duplicate", []string{"A", "B", "A"}},
		{"finish reserved", []string{"A", FinishToken}},
		{"supervisor reserved", []string{SupervisorNode}},
		{"end reserved", []string{EndNode}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(tt.roles...)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.Equal(t, KindInvariant, KindOf(err))
		})
	}
}

func TestRegistry_MenuAndRoles(t *testing.T) {
	r := MustRegistry("FileOperationAgent", "FileSearchAgent")

	assert.Equal(t, []string{"FINISH", "FileOperationAgent", "FileSearchAgent"}, r.Menu())
	assert.Equal(t, []string{"FileOperationAgent", "FileSearchAgent"}, r.Roles())
	assert.True(t, r.Contains("FileSearchAgent"))
	assert.False(t, r.Contains("FINISH"))

	roles := r.Roles()
	roles[0] = "mutated"
	assert.Equal(t, "FileOperationAgent", r.Roles()[0], "Roles must return a copy")
}

func TestRegistry_Parse(t *testing.T) {
	r := MustRegistry("A", "B")

	route, err := r.Parse("B")
	require.NoError(t, err)
	assert.Equal(t, RouteRole, route.Kind())
	assert.Equal(t, "B", route.Role())
	assert.Equal(t, "B", route.String())

	route, err = r.Parse("  FINISH\n")
	require.NoError(t, err)
	assert.True(t, route.IsFinish())
	assert.Equal(t, Finish, route)

	_, err = r.Parse("C")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownRoute))
	assert.Equal(t, KindInvariant, KindOf(err))

	_, err = r.Parse("finish")
	assert.Equal(t, KindInvariant, KindOf(err), "tokens are case sensitive")

	_, err = r.Parse("   ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDecision))
	assert.Equal(t, KindCapability, KindOf(err))
}

func TestRoute_ZeroValue(t *testing.T) {
	var r Route
	assert.False(t, r.IsSet())
	assert.False(t, r.IsFinish())
	assert.Equal(t, "", r.String())

	b, err := Finish.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"FINISH"`, string(b))
}
