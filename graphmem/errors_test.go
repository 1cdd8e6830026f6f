package graphmem

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("backend unavailable")

	tr := Transient(base)
	assert.True(t, IsTransient(tr))
	assert.False(t, IsPermanent(tr))
	assert.ErrorIs(t, tr, base)

	pe := Permanent(errors.New("payload rejected"))
	assert.True(t, IsPermanent(pe))
	assert.False(t, IsTransient(pe))
}

func TestErrorClassification_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit episode: %w", Transient(errors.New("rate limited")))
	assert.True(t, IsTransient(wrapped))

	wrapped = fmt.Errorf("submit episode: %w", Permanent(errors.New("bad body")))
	assert.True(t, IsPermanent(wrapped))
}

func TestErrorClassification_Unclassified(t *testing.T) {
	err := errors.New("plain")
	assert.False(t, IsTransient(err))
	assert.False(t, IsPermanent(err))
}
