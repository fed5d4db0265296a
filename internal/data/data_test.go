package data

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/backend/cpu"
)

func TestSynthetic_Deterministic(t *testing.T) {
	a := Synthetic(20, 7)
	b := Synthetic(20, 7)
	require.Equal(t, 20, a.Len())

	for i := 0; i < a.Len(); i++ {
		x, err := a.Get(i)
		require.NoError(t, err)
		y, err := b.Get(i)
		require.NoError(t, err)
		assert.Equal(t, x, y)
		assert.Equal(t, i%SyntheticClasses, x.Label)
		assert.Len(t, x.Image, SyntheticSize*SyntheticSize)
		for _, p := range x.Image {
			assert.True(t, p >= 0 && p <= 255)
		}
	}

	c := Synthetic(20, 8)
	x, _ := a.Get(0)
	y, _ := c.Get(0)
	assert.NotEqual(t, x.Image, y.Image)
}

func TestInMemory_GetOutOfRange(t *testing.T) {
	ds := NewInMemory([]Item{{Label: 1}})
	_, err := ds.Get(1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = ds.Get(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSplit(t *testing.T) {
	ds := Synthetic(10, 1)
	train, test, err := Split(ds, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, train.Len())
	assert.Equal(t, 3, test.Len())

	first, err := test.Get(0)
	require.NoError(t, err)
	want, _ := ds.Get(7)
	assert.Equal(t, want, first)

	_, err = test.Get(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, _, err = Split(ds, 11)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestWindow(t *testing.T) {
	ds := Synthetic(50, 1)

	items, err := Window(ds, 40, 41)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 0, items[0].Label)

	items, err = Window(ds, 45, 100)
	require.NoError(t, err)
	assert.Len(t, items, 5, "end is clamped")

	_, err = Window(ds, 50, 51)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = Window(ds, 10, 10)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestBatcher_NormalizesAndPreservesOrder(t *testing.T) {
	b := NewBatcher(cpu.New())
	items := []Item{
		{Image: []float32{0, 255}, Height: 1, Width: 2, Label: 3},
		{Image: []float32{255, 0}, Height: 1, Width: 2, Label: 1},
	}

	batch, err := b.Batch(items)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size())
	assert.Equal(t, []int{2, 1, 2}, []int(batch.Images.Shape()))
	assert.Equal(t, []int32{3, 1}, batch.Targets.Data())

	lo := float32((0 - PixelMean) / PixelStd)
	hi := float32((1 - PixelMean) / PixelStd)
	assert.InDeltaSlice(t, []float32{lo, hi, hi, lo}, batch.Images.Data(), 1e-6)
}

func TestBatcher_Errors(t *testing.T) {
	b := NewBatcher(cpu.New())

	_, err := b.Batch(nil)
	assert.ErrorIs(t, err, ErrEmptyBatch)

	_, err = b.Batch([]Item{
		{Image: make([]float32, 4), Height: 2, Width: 2},
		{Image: make([]float32, 6), Height: 2, Width: 3},
	})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = b.Batch([]Item{{Image: make([]float32, 3), Height: 2, Width: 2}})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func collectLabels(t *testing.T, l *Loader[*cpu.CPUBackend], epoch int) ([]int32, []int) {
	t.Helper()
	var labels []int32
	var sizes []int
	err := l.ForEach(context.Background(), epoch, func(_ int, b *Batch[*cpu.CPUBackend]) error {
		labels = append(labels, b.Targets.Data()...)
		sizes = append(sizes, b.Size())
		return nil
	})
	require.NoError(t, err)
	return labels, sizes
}

func TestLoader_SequentialOrder(t *testing.T) {
	ds := Synthetic(23, 1)
	l, err := NewLoader(ds, NewBatcher(cpu.New()), LoaderConfig{BatchSize: 5, NumWorkers: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, l.NumBatches())

	labels, sizes := collectLabels(t, l, 0)
	assert.Equal(t, []int{5, 5, 5, 5, 3}, sizes)
	for i, label := range labels {
		assert.Equal(t, int32(i%SyntheticClasses), label)
	}
}

func TestLoader_ShuffleDeterministicAcrossWorkers(t *testing.T) {
	ds := Synthetic(64, 1)
	cfg := LoaderConfig{BatchSize: 8, NumWorkers: 1, Shuffle: true, Seed: 42}
	single, err := NewLoader(ds, NewBatcher(cpu.New()), cfg)
	require.NoError(t, err)
	cfg.NumWorkers = 4
	multi, err := NewLoader(ds, NewBatcher(cpu.New()), cfg)
	require.NoError(t, err)

	a, _ := collectLabels(t, single, 3)
	b, _ := collectLabels(t, multi, 3)
	assert.Equal(t, a, b)

	assert.Equal(t, single.Order(3), multi.Order(3))
	assert.NotEqual(t, single.Order(0), single.Order(1), "each epoch reshuffles")
}

func TestLoader_StopsOnCallbackError(t *testing.T) {
	ds := Synthetic(100, 1)
	l, err := NewLoader(ds, NewBatcher(cpu.New()), LoaderConfig{BatchSize: 2, NumWorkers: 4})
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = l.ForEach(context.Background(), 0, func(i int, _ *Batch[*cpu.CPUBackend]) error {
		calls++
		if i == 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 4, calls)
}

func TestLoader_ContextCancel(t *testing.T) {
	ds := Synthetic(100, 1)
	l, err := NewLoader(ds, NewBatcher(cpu.New()), LoaderConfig{BatchSize: 2, NumWorkers: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	err = l.ForEach(ctx, 0, func(i int, _ *Batch[*cpu.CPUBackend]) error {
		if i == 1 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_BatchErrorSurfaces(t *testing.T) {
	ds := NewInMemory([]Item{
		{Image: make([]float32, 4), Height: 2, Width: 2},
		{Image: make([]float32, 9), Height: 3, Width: 3},
	})
	l, err := NewLoader(ds, NewBatcher(cpu.New()), LoaderConfig{BatchSize: 2, NumWorkers: 1})
	require.NoError(t, err)

	err = l.ForEach(context.Background(), 0, func(int, *Batch[*cpu.CPUBackend]) error { return nil })
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestNewLoader_Validation(t *testing.T) {
	_, err := NewLoader(Synthetic(1, 1), NewBatcher(cpu.New()), LoaderConfig{BatchSize: 0, NumWorkers: 1})
	assert.Error(t, err)
	_, err = NewLoader(Synthetic(1, 1), NewBatcher(cpu.New()), LoaderConfig{BatchSize: 1, NumWorkers: 0})
	assert.Error(t, err)
}

func idxFiles(t *testing.T, images [][]byte, rows, cols int, labels []byte) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var img, lbl bytes.Buffer
	require.NoError(t, binary.Write(&img, binary.BigEndian, [4]uint32{idxImagesMagic, uint32(len(images)), uint32(rows), uint32(cols)}))
	for _, im := range images {
		img.Write(im)
	}
	require.NoError(t, binary.Write(&lbl, binary.BigEndian, [2]uint32{idxLabelsMagic, uint32(len(labels))}))
	lbl.Write(labels)
	return &img, &lbl
}

func TestDecodeIDX(t *testing.T) {
	img, lbl := idxFiles(t, [][]byte{{0, 1, 2, 3}, {255, 254, 253, 252}}, 2, 2, []byte{7, 2})

	ds, err := DecodeIDX(img, lbl)
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	item, err := ds.Get(1)
	require.NoError(t, err)
	assert.Equal(t, Item{Image: []float32{255, 254, 253, 252}, Height: 2, Width: 2, Label: 2}, item)
}

func TestDecodeIDX_Errors(t *testing.T) {
	img, lbl := idxFiles(t, [][]byte{{0, 1, 2, 3}}, 2, 2, []byte{7, 2})
	_, err := DecodeIDX(img, lbl)
	assert.ErrorIs(t, err, ErrInvalidIDX, "count mismatch")

	_, err = DecodeIDX(bytes.NewReader([]byte{0, 0, 8, 1}), bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrInvalidIDX, "short header")

	img, lbl = idxFiles(t, [][]byte{{0, 1, 2, 3}}, 2, 2, []byte{7})
	truncated := bytes.NewReader(img.Bytes()[:img.Len()-1])
	_, err = DecodeIDX(truncated, lbl)
	assert.ErrorIs(t, err, ErrInvalidIDX, "truncated pixels")

	_, lbl = idxFiles(t, nil, 2, 2, []byte{1})
	var wrong bytes.Buffer
	require.NoError(t, binary.Write(&wrong, binary.BigEndian, [4]uint32{idxLabelsMagic, 0, 2, 2}))
	_, err = DecodeIDX(&wrong, lbl)
	assert.ErrorIs(t, err, ErrInvalidIDX, "wrong magic")
}
