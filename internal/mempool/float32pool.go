// Package mempool pools []float32 buffers for input tensors.
package mempool

import (
	"sync"
)

var float32Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 1024.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float32, cls)
		return &buf
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat32 returns a buffer of length n. Contents are not zeroed.
// Return it with PutFloat32 once nothing references it.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	bp, ok := poolFor(cls).Get().(*[]float32)
	if !ok || cap(*bp) < cls {
		buf := make([]float32, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

// PutFloat32 returns buf to the pool. Nil and foreign-sized slices are dropped.
func PutFloat32(buf []float32) {
	if cap(buf) == 0 || cap(buf)%1024 != 0 {
		return
	}
	buf = buf[:cap(buf)]
	poolFor(cap(buf)).Put(&buf)
}
