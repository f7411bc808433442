package model_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/model/modeltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyLoadsOnce(t *testing.T) {
	var calls atomic.Int32
	lazy := model.NewLazyFunc(func() (model.Classifier, error) {
		calls.Add(1)
		return modeltest.Color(t), nil
	})
	assert.False(t, lazy.Loaded())

	var wg sync.WaitGroup
	results := make([]model.Classifier, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := lazy.Get()
			assert.NoError(t, err)
			results[i] = c
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, lazy.Loaded())
	for _, c := range results {
		assert.Same(t, results[0], c)
	}
	require.NoError(t, lazy.Close())
}

func TestLazyRemembersFailure(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	lazy := model.NewLazyFunc(func() (model.Classifier, error) {
		calls.Add(1)
		return nil, boom
	})

	_, err := lazy.Get()
	require.ErrorIs(t, err, boom)
	_, err = lazy.Get()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, lazy.Loaded())
	assert.NoError(t, lazy.Close())
}

func TestLazyFromConfig(t *testing.T) {
	path := modeltest.WriteSpec(t, modeltest.ConstantSpec(0.2))
	lazy := model.NewLazy(model.DefaultConfig(path))
	c, err := lazy.Get()
	require.NoError(t, err)
	assert.Equal(t, model.BackendNative, c.Info().Backend)
}

func TestWarmup(t *testing.T) {
	m := modeltest.Color(t)
	require.NoError(t, model.Warmup(m, model.LastConv, 2))
	require.NoError(t, model.Warmup(m, "conv2d", 0))

	err := model.Warmup(m, "missing", 1)
	var lnf *model.LayerNotFoundError
	require.ErrorAs(t, err, &lnf)
}

func TestWarmupTensor(t *testing.T) {
	ten, err := model.WarmupTensor(model.Info{InputHeight: 4, InputWidth: 5, InputChannels: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 5, 3}, ten.Shape)
	assert.InDelta(t, 0.5, ten.Data[7], 1e-9)
}
