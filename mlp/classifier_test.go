// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import (
	"testing"

	"github.com/axisml/digits/mnist"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// TestClassifierMatchesMismatch checks the single-image path against the batch
// mismatch vector: for every example, Classify must disagree with the label
// exactly where Mismatch says so. Pixels are kept at 0 or 1 so the image
// round-trip through 8-bit grayscale is lossless.
func TestClassifierMatchesMismatch(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	config := NewConfig(8)

	const n = 10
	pixels := make([]float32, n*mnist.ExampleSize)
	labels := make([]int8, n)
	for i := 0; i < n; i++ {
		labels[i] = int8(i)
		for x := 0; x < mnist.Width; x++ {
			pixels[i*mnist.ExampleSize+i*mnist.Width+x] = 1
		}
	}
	split, err := mnist.NewSplit("synthetic", pixels, labels)
	require.NoError(t, err)

	images := tensors.FromFlatDataAndDimensions(pixels, n, mnist.Height, mnist.Width, mnist.Channels)
	classes := make([]int32, n)
	for i := range classes {
		classes[i] = int32(labels[i])
	}
	labelsT := tensors.FromFlatDataAndDimensions(classes, n)

	// Create the model variables with their random initialization. No training
	// needed: the classifier must agree with the mismatch vector regardless of
	// the variable values.
	mismatchExec := context.NewExec(backend, ctx, func(ctx *context.Context, images, labels *graph.Node) *graph.Node {
		return config.Mismatch(ctx, images, labels)
	})
	mismatches := tensors.CopyFlatData[bool](mismatchExec.Call(images, labelsT)[0])
	require.Len(t, mismatches, n)

	classifier := NewClassifier(backend, ctx, config)
	for i := 0; i < n; i++ {
		digit, err := classifier.Classify(split.GrayImage(i))
		require.NoError(t, err)
		require.GreaterOrEqual(t, digit, int32(0))
		require.Less(t, digit, int32(mnist.NumClasses))
		assert.Equalf(t, mismatches[i], digit != classes[i],
			"example %d: classified as %d, label %d, batch mismatch %v", i, digit, classes[i], mismatches[i])
	}
}
