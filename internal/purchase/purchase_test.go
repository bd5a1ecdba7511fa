package purchase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/shelfwatch/internal/models"
	"github.com/shelfwatch/shelfwatch/internal/store"
)

type scriptedAction struct {
	results []func() (*Result, error)
	calls   int
	seen    []int // quantity per call
}

func (a *scriptedAction) Attempt(ctx context.Context, product models.Product, quantity int) (*Result, error) {
	a.seen = append(a.seen, quantity)
	r := a.results[a.calls]
	a.calls++
	return r()
}

func newTestAutomation(action Action, st store.Store) (*Automation, *[]time.Duration) {
	a := New(action, st)
	slept := &[]time.Duration{}
	a.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return a, slept
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	action := &scriptedAction{results: []func() (*Result, error){
		func() (*Result, error) { return &Result{Success: true, QuantityObtained: 1}, nil },
	}}
	st := store.NewMemory(10)
	a, slept := newTestAutomation(action, st)

	p := models.Product{ID: "p1", URL: "https://a.example.com/1"}
	res, err := a.Run(context.Background(), p)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, action.calls)
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)

	logs, _ := st.RecentLogs(context.Background(), 0)
	require.Len(t, logs, 1)
	assert.Equal(t, "auto_add_to_cart", logs[0].Event)
}

func TestRunRetriesWithDoublingDelays(t *testing.T) {
	action := &scriptedAction{results: []func() (*Result, error){
		func() (*Result, error) { return nil, errors.New("button not found") },
		func() (*Result, error) { return nil, errors.New("button not found") },
		func() (*Result, error) { return &Result{Success: true, QuantityObtained: 2}, nil },
	}}
	a, slept := newTestAutomation(action, store.NewMemory(10))

	p := models.Product{ID: "p1", URL: "https://a.example.com/1", MaxQuantity: 2}
	res, err := a.Run(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, 2, res.QuantityObtained)
	assert.Equal(t, []time.Duration{3 * time.Second, 6 * time.Second, 12 * time.Second}, *slept)
	assert.Equal(t, []int{2, 2, 2}, action.seen)
}

func TestRunExhaustsAttempts(t *testing.T) {
	action := &scriptedAction{results: []func() (*Result, error){
		func() (*Result, error) { return nil, errors.New("out of stock again") },
		func() (*Result, error) { return nil, errors.New("out of stock again") },
		func() (*Result, error) { return nil, errors.New("out of stock again") },
	}}
	st := store.NewMemory(10)
	a, _ := newTestAutomation(action, st)

	p := models.Product{ID: "p1", URL: "https://a.example.com/1"}
	_, err := a.Run(context.Background(), p)

	require.Error(t, err)
	assert.Equal(t, 3, action.calls)

	logs, _ := st.RecentLogs(context.Background(), 0)
	require.Len(t, logs, 1)
	assert.Equal(t, "auto_add_to_cart_failed", logs[0].Event)
}

func TestRunUnsuccessfulResultCountsAsFailure(t *testing.T) {
	action := &scriptedAction{results: []func() (*Result, error){
		func() (*Result, error) { return &Result{Success: false, Warning: "cart rejected quantity"}, nil },
		func() (*Result, error) { return &Result{Success: true, QuantityObtained: 1, Warning: "page max 1"}, nil },
	}}
	a, _ := newTestAutomation(action, store.NewMemory(10))

	p := models.Product{ID: "p1", URL: "https://a.example.com/1"}
	res, err := a.Run(context.Background(), p)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, action.calls)
}

func TestRunClampsQuantityToOne(t *testing.T) {
	action := &scriptedAction{results: []func() (*Result, error){
		func() (*Result, error) { return &Result{Success: true, QuantityObtained: 1}, nil },
	}}
	a, _ := newTestAutomation(action, store.NewMemory(10))

	p := models.Product{ID: "p1", URL: "https://a.example.com/1", MaxQuantity: 0}
	_, err := a.Run(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, []int{1}, action.seen)
}

func TestRunHonorsCancellation(t *testing.T) {
	action := &scriptedAction{}
	a := New(action, store.NewMemory(10))
	a.sleep = func(ctx context.Context, d time.Duration) error { return context.Canceled }

	p := models.Product{ID: "p1", URL: "https://a.example.com/1"}
	_, err := a.Run(context.Background(), p)

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, action.calls)
}
