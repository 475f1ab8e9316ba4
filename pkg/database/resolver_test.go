package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type englishGreeter struct{}

func (englishGreeter) Greet() string { return "hello" }

type italianGreeter struct{}

func (italianGreeter) Greet() string { return "ciao" }

func TestResolveRegisteredService(t *testing.T) {
	r := NewDependencyResolver()
	Register[greeter](r, englishGreeter{})

	g, err := Resolve[greeter](r)
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())
}

func TestResolveUnregisteredTypeFails(t *testing.T) {
	r := NewDependencyResolver()

	_, err := Resolve[greeter](r)
	require.Error(t, err)

	var unsatisfied *UnsatisfiedDependencyError
	require.ErrorAs(t, err, &unsatisfied)
}

func TestLaterRegistrationReplacesEarlier(t *testing.T) {
	r := NewDependencyResolver()
	Register[greeter](r, englishGreeter{})
	Register[greeter](r, italianGreeter{})

	g, err := Resolve[greeter](r)
	require.NoError(t, err)
	assert.Equal(t, "ciao", g.Greet())
}

func TestDistinctTypesAreIndependent(t *testing.T) {
	r := NewDependencyResolver()
	Register[greeter](r, englishGreeter{})
	Register[string](r, "forty-two")

	g, err := Resolve[greeter](r)
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())

	s, err := Resolve[string](r)
	require.NoError(t, err)
	assert.Equal(t, "forty-two", s)
}

func TestSatisfied(t *testing.T) {
	r := NewDependencyResolver()
	assert.False(t, Satisfied[greeter](r))

	Register[greeter](r, englishGreeter{})
	assert.True(t, Satisfied[greeter](r))
}
