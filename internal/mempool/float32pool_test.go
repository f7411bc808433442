package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 1024},
		{1, 1024},
		{1024, 1024},
		{1025, 2048},
		{150 * 150 * 3, 67584},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.n), "n=%d", tt.n)
	}
}

func TestGetFloat32(t *testing.T) {
	buf := GetFloat32(100)
	assert.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 1024)

	big := GetFloat32(150 * 150 * 3)
	assert.Len(t, big, 67500)
	assert.Equal(t, 67584, cap(big))
	PutFloat32(big)

	again := GetFloat32(67500)
	assert.Len(t, again, 67500)
	assert.Equal(t, 67584, cap(again))
}

func TestPutFloat32IgnoresForeignSlices(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
	})
}

func TestConcurrentUse(t *testing.T) {
	done := make(chan struct{})
	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for i := range 100 {
				buf := GetFloat32(2000 + i)
				buf[0] = 1
				PutFloat32(buf)
			}
		}()
	}
	for range 8 {
		<-done
	}
}
