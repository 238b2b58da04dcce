package entity_detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/entigo/pkg/errors"
	"github.com/turtacn/entigo/pkg/types/entity"
)

func noDetection(context.Context, string, []entity.Entity) (Result, error) {
	return None(), nil
}

func TestEngine_RegisterValidation(t *testing.T) {
	e := NewEngine()

	err := e.Register("", DetectorFunc(noDetection), Options{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorMisconfigured))

	err = e.Register("NIL", nil, Options{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorMisconfigured))

	err = e.RegisterRegexp("", `\d+`, Options{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeDetectorMisconfigured))

	assert.Panics(t, func() {
		e.MustRegisterRegexp("PRICE", `@NUMBER czk`, Options{ExtractValueFrom: "CURRENCY"})
	})
	assert.Empty(t, e.Detectors())
}

func TestEngine_RegisterReplacesInPlace(t *testing.T) {
	e := NewEngine().
		MustRegister("A", DetectorFunc(noDetection), Options{}).
		MustRegisterRegexp("B", `b`, Options{}).
		MustRegister("A", DetectorFunc(noDetection), Options{Dependencies: []string{"number", "@NUMBER", "city"}, Anonymize: true})

	assert.Equal(t, []string{"A", "B"}, e.Detectors())

	spec, ok := e.Spec("A")
	require.True(t, ok)
	assert.Equal(t, []string{"@NUMBER", "@CITY"}, spec.Dependencies)
	assert.True(t, spec.Anonymize)

	_, ok = e.Spec("MISSING")
	assert.False(t, ok)
}

func TestEngine_RegexpDependenciesComeFromPattern(t *testing.T) {
	e := NewEngine().MustRegisterRegexp("PRICE", `@NUMBER\s*@CURRENCY|@NUMBER`, Options{Dependencies: []string{"IGNORED"}})
	spec, ok := e.Spec("PRICE")
	require.True(t, ok)
	assert.Equal(t, []string{"@NUMBER", "@CURRENCY"}, spec.Dependencies)
}

func TestEngine_DependentEntities(t *testing.T) {
	e := NewEngine().
		MustRegisterRegexp("PRICE", `@NUMBER\s*czk`, Options{}).
		MustRegisterRegexp("NUMBER", `\d+`, Options{}).
		MustRegister("ADDRESS", DetectorFunc(noDetection), Options{Dependencies: []string{"street", "@CITY", "number"}})

	assert.Equal(t, []string{"NUMBER", "street", "city"}, e.DependentEntities(AllDependencies))
	assert.Equal(t, []string{"NUMBER"}, e.DependentEntities(KnownDependencies))
	assert.Equal(t, []string{"street", "city"}, e.DependentEntities(UnknownDependencies))
	assert.Empty(t, NewEngine().DependentEntities(AllDependencies))
}

//Personal.AI order the ending
