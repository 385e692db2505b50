package appstate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStopper records Shutdown calls.
type MockStopper struct {
	mock.Mock
}

func (m *MockStopper) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type recorder struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (r recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.order = append(*r.order, r.name)
	return nil
}

type first struct{ recorder }
type second struct{ recorder }

type view interface {
	Shutdown(ctx context.Context) error
}

func TestRegisterAndLookup(t *testing.T) {
	c := New(nil)

	require.NoError(t, Register(c, 42))
	require.NoError(t, Register(c, "name"))

	n, ok := Lookup[int](c)
	require.True(t, ok)
	assert.Equal(t, 42, n)

	s := MustLookup[string](c)
	assert.Equal(t, "name", s)

	_, ok = Lookup[float64](c)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestSecondRegistrationRejected(t *testing.T) {
	c := New(nil)
	firstStopper := &MockStopper{}
	secondStopper := &MockStopper{}

	require.NoError(t, Register[view](c, firstStopper))

	err := Register[view](c, secondStopper)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	got, ok := Lookup[view](c)
	require.True(t, ok)
	assert.Same(t, firstStopper, got)

	firstStopper.On("Shutdown", mock.Anything).Return(nil).Once()
	require.NoError(t, c.Close(context.Background()))

	firstStopper.AssertExpectations(t)
	secondStopper.AssertNotCalled(t, "Shutdown", mock.Anything)
}

func TestCloseReverseOrder(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	c := New(nil)
	require.NoError(t, Register(c, first{recorder{"first", &order, &mu}}))
	require.NoError(t, Register(c, second{recorder{"second", &order, &mu}}))

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestCloseOnce(t *testing.T) {
	c := New(nil)
	stopper := &MockStopper{}
	stopper.On("Shutdown", mock.Anything).Return(errors.New("stuck")).Once()
	require.NoError(t, Register[view](c, stopper))

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")

	assert.Equal(t, err, c.Close(context.Background()))
	stopper.AssertNumberOfCalls(t, "Shutdown", 1)

	assert.True(t, c.Closed())
	assert.Equal(t, 0, c.Len())
}

func TestRegisterAfterClose(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Close(context.Background()))

	err := Register(c, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseContinuesAfterFailure(t *testing.T) {
	c := New(nil)
	failing := &MockStopper{}
	failing.On("Shutdown", mock.Anything).Return(errors.New("boom"))

	var (
		order []string
		mu    sync.Mutex
	)
	require.NoError(t, Register(c, first{recorder{"first", &order, &mu}}))
	require.NoError(t, Register[view](c, failing))

	err := c.Close(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"first"}, order)
}

func TestMustLookupPanics(t *testing.T) {
	c := New(nil)
	assert.Panics(t, func() { MustLookup[int](c) })
}

type reader interface {
	Value() int
}

type readOnly struct{ n int }

func (r readOnly) Value() int { return r.n }

func TestRegisterOwnedHidesTeardown(t *testing.T) {
	c := New(nil)
	owner := &MockStopper{}
	owner.On("Shutdown", mock.Anything).Return(nil).Once()

	require.NoError(t, RegisterOwned[reader](c, readOnly{7}, owner.Shutdown))

	got, ok := Lookup[reader](c)
	require.True(t, ok)
	assert.Equal(t, 7, got.Value())
	_, isStopper := got.(Stopper)
	assert.False(t, isStopper)
	owner.AssertNotCalled(t, "Shutdown", mock.Anything)

	require.NoError(t, c.Close(context.Background()))
	owner.AssertExpectations(t)
}

func TestRegisterOwnedOrderAndErrors(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	c := New(nil)
	require.NoError(t, Register(c, first{recorder{"first", &order, &mu}}))
	require.NoError(t, RegisterOwned[reader](c, readOnly{1}, func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, "owned")
		return errors.New("still running")
	}))

	err := c.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
	assert.Equal(t, []string{"owned", "first"}, order)
}

func TestRegisterOwnedRejectsNilTeardown(t *testing.T) {
	c := New(nil)
	assert.Error(t, RegisterOwned[reader](c, readOnly{1}, nil))
	assert.Equal(t, 0, c.Len())
}
