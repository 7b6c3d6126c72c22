package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Validate(Defaults()))
}

func TestValidateRejectsNonPositivePipeSize(t *testing.T) {
	c := Defaults()
	c.PipeSize = 0
	assert.Error(t, Validate(c))
}

func TestValidateRejectsUnknownSeverity(t *testing.T) {
	c := Defaults()
	c.LogSeverity = "VERBOSE"
	assert.Error(t, Validate(c))
}

func TestRationalizeFillsZeroFields(t *testing.T) {
	var c Config
	Rationalize(&c)
	assert.Equal(t, Defaults(), c)
}
