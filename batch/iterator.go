// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package batch cuts a dataset split into fixed-size minibatches of tensors.
//
// Batches are yielded in source order, with no reshuffling. A short trailing
// batch is overfilled by wrapping around to the start of the split, so every
// yielded batch has exactly the configured batch size; callers that need
// exact-count results truncate using Iterator.NumExamples.
package batch

import (
	"fmt"
	"io"

	"github.com/axisml/digits/mnist"
	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
)

// Iterator yields minibatches from a split. It implements train.Dataset.
//
// By default it makes a single pass: ceil(N/B) batches and then io.EOF until
// Reset. WithMaxYields switches it to cycling mode, bounded to a fixed number
// of yields, for training runs driven by a step count.
type Iterator struct {
	split     *mnist.Split
	batchSize int

	position int // index of the next example, always < NumExamples.
	yields   int
	limit    int
	cycling  bool
}

var _ train.Dataset = (*Iterator)(nil)

// New builds an iterator over split with the given batch size.
func New(split *mnist.Split, batchSize int) (*Iterator, error) {
	if batchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", batchSize)
	}
	if split.NumExamples() == 0 {
		return nil, errors.Errorf("split %q has no examples", split.Name())
	}
	n := split.NumExamples()
	return &Iterator{
		split:     split,
		batchSize: batchSize,
		limit:     (n + batchSize - 1) / batchSize,
	}, nil
}

// WithMaxYields bounds the iterator to n yields, cycling over the split as many
// times as needed. It returns the iterator to allow chaining.
func (it *Iterator) WithMaxYields(n int) *Iterator {
	it.limit = n
	it.cycling = true
	return it
}

// Name implements train.Dataset.
func (it *Iterator) Name() string {
	return fmt.Sprintf("%s[batch=%d]", it.split.Name(), it.batchSize)
}

// NumExamples returns the total example count of the underlying split.
func (it *Iterator) NumExamples() int { return it.split.NumExamples() }

// BatchesPerEpoch returns floor(NumExamples/batchSize), the number of full
// batches in one pass over the split.
func (it *Iterator) BatchesPerEpoch() int {
	return it.split.NumExamples() / it.batchSize
}

// BatchSize returns the fixed batch size.
func (it *Iterator) BatchSize() int { return it.batchSize }

// Reset implements train.Dataset, restoring the iterator to its first batch.
func (it *Iterator) Reset() {
	it.position = 0
	it.yields = 0
}

// Yield implements train.Dataset. It returns an image batch shaped
// [batchSize, Height, Width, Channels] (float32) and a label batch shaped
// [batchSize] (int32). After the last batch it returns io.EOF with no data.
func (it *Iterator) Yield() (spec any, inputs, labels []*tensors.Tensor, err error) {
	if it.yields >= it.limit {
		return nil, nil, nil, io.EOF
	}
	it.yields++

	n := it.split.NumExamples()
	images := make([]float32, 0, it.batchSize*mnist.ExampleSize)
	classes := make([]int32, 0, it.batchSize)
	for j := 0; j < it.batchSize; j++ {
		i := (it.position + j) % n
		images = append(images, it.split.Image(i)...)
		classes = append(classes, int32(it.split.Label(i)))
	}
	it.position = (it.position + it.batchSize) % n

	return it,
		[]*tensors.Tensor{tensors.FromFlatDataAndDimensions(images, it.batchSize, mnist.Height, mnist.Width, mnist.Channels)},
		[]*tensors.Tensor{tensors.FromFlatDataAndDimensions(classes, it.batchSize)},
		nil
}
