package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("test", 2, time.Minute).WithClock(func() time.Time { return now })
	boom := errors.New("boom")
	fail := func() error { return boom }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Call(ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsRejection(err))
	assert.False(t, IsRejection(boom))

	// after the reset timeout one trial request is let through; a failure reopens
	now = now.Add(time.Minute)
	assert.ErrorIs(t, cb.Call(fail), boom)
	assert.Equal(t, StateOpen, cb.GetState())

	now = now.Add(time.Minute)
	assert.NoError(t, cb.Call(ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	boom := errors.New("boom")

	assert.Error(t, cb.Call(func() error { return boom }))
	assert.NoError(t, cb.Call(func() error { return nil }))
	assert.Error(t, cb.Call(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.GetState())

	assert.Error(t, cb.Call(func() error { return boom }))
	assert.Equal(t, StateOpen, cb.GetState())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}
