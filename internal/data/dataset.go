// Package data provides labeled image datasets and turns them into
// normalized tensor batches.
//
// A Dataset is an indexable collection of Items. InMemory holds decoded
// items (from IDX files or the synthetic generator), Subset selects a
// contiguous range, and Loader streams shuffled batches through a small
// worker pool.
package data

import "fmt"

// Item is one labeled grayscale image with raw pixel values in [0, 255].
// Items are immutable once created.
type Item struct {
	Image  []float32 // row-major [Height*Width]
	Height int
	Width  int
	Label  int
}

// Dataset is an indexable collection of items.
type Dataset interface {
	Get(i int) (Item, error)
	Len() int
}

// InMemory is a Dataset backed by a slice.
type InMemory struct {
	items []Item
}

// NewInMemory wraps items. The slice is not copied.
func NewInMemory(items []Item) *InMemory {
	return &InMemory{items: items}
}

// Get returns item i.
func (d *InMemory) Get(i int) (Item, error) {
	if i < 0 || i >= len(d.items) {
		return Item{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(d.items))
	}
	return d.items[i], nil
}

// Len returns the number of items.
func (d *InMemory) Len() int {
	return len(d.items)
}

// Subset is a contiguous view [begin, end) of another dataset.
type Subset struct {
	ds         Dataset
	begin, end int
}

// Get returns item i of the view.
func (s *Subset) Get(i int) (Item, error) {
	if i < 0 || i >= s.Len() {
		return Item{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, s.Len())
	}
	return s.ds.Get(s.begin + i)
}

// Len returns the number of items in the view.
func (s *Subset) Len() int {
	return s.end - s.begin
}

// Split divides ds into [0, at) and [at, Len).
func Split(ds Dataset, at int) (*Subset, *Subset, error) {
	if at < 0 || at > ds.Len() {
		return nil, nil, fmt.Errorf("%w: split point %d not in [0, %d]", ErrIndexOutOfRange, at, ds.Len())
	}
	return &Subset{ds: ds, begin: 0, end: at}, &Subset{ds: ds, begin: at, end: ds.Len()}, nil
}

// Window returns the items in [begin, end). end is clamped to the dataset
// length; begin must lie inside the dataset.
func Window(ds Dataset, begin, end int) ([]Item, error) {
	n := ds.Len()
	if begin < 0 || begin >= n {
		return nil, fmt.Errorf("%w: window start %d not in [0, %d)", ErrIndexOutOfRange, begin, n)
	}
	if end <= begin {
		return nil, fmt.Errorf("%w: empty window [%d, %d)", ErrIndexOutOfRange, begin, end)
	}
	end = min(end, n)

	items := make([]Item, 0, end-begin)
	for i := begin; i < end; i++ {
		item, err := ds.Get(i)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Splits pairs the training split with the held-out split.
type Splits struct {
	Train Dataset
	Test  Dataset
}
