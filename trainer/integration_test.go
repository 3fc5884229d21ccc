// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

package trainer

import (
	"testing"

	"github.com/axisml/digits/batch"
	"github.com/axisml/digits/mlp"
	"github.com/axisml/digits/mnist"
	"github.com/axisml/digits/sgd"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// syntheticSplit builds n trivially learnable examples: the digit d is an image
// whose d-th row is lit.
func syntheticSplit(t *testing.T, name string, n int) *mnist.Split {
	t.Helper()
	images := make([]float32, n*mnist.ExampleSize)
	labels := make([]int8, n)
	for i := 0; i < n; i++ {
		d := i % mnist.NumClasses
		labels[i] = int8(d)
		for x := 0; x < mnist.Width; x++ {
			images[i*mnist.ExampleSize+d*mnist.Width+x] = 1
		}
	}
	split, err := mnist.NewSplit(name, images, labels)
	require.NoError(t, err)
	return split
}

// TestPipeline runs the full wiring: bounded training source, compiled train
// step with embedded momentum updates, error step, epoch reports and validation
// truncation.
func TestPipeline(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	config := mlp.NewConfig(16)
	optimizer := sgd.Momentum().Done()

	trainExec := context.NewExec(backend, ctx, func(ctx *context.Context, images, labels *graph.Node) *graph.Node {
		loss := config.Loss(ctx, images, labels)
		optimizer.UpdateGraph(ctx, loss.Graph(), loss)
		return loss
	})
	errorExec := context.NewExec(backend, ctx.Reuse(), func(ctx *context.Context, images, labels *graph.Node) *graph.Node {
		return config.Mismatch(ctx, images, labels)
	})

	const batchSize = 10
	trainSplit := syntheticSplit(t, "train", 40)
	validSplit := syntheticSplit(t, "validation", 25)

	trainSource, err := batch.New(trainSplit, batchSize)
	require.NoError(t, err)
	batchesPerEpoch := trainSource.BatchesPerEpoch() // 4
	trainSource = trainSource.WithMaxYields(20 * batchesPerEpoch)

	validSource, err := batch.New(validSplit, batchSize)
	require.NoError(t, err)

	var reports []Report
	rate, err := Run(Config{
		Train:              trainSource,
		Validation:         validSource,
		BatchesPerEpoch:    batchesPerEpoch,
		ValidationExamples: validSplit.NumExamples(),
		TrainStep: func(images, labels *tensors.Tensor) (cost float64, err error) {
			err = exceptions.TryCatch[error](func() {
				cost = float64(tensors.ToScalar[float32](trainExec.Call(images, labels)[0]))
			})
			return
		},
		ErrorStep: func(images, labels *tensors.Tensor) (mismatches []bool, err error) {
			err = exceptions.TryCatch[error](func() {
				mismatches = tensors.CopyFlatData[bool](errorExec.Call(images, labels)[0])
			})
			return
		},
		OnReport: func(r Report) { reports = append(reports, r) },
	})
	require.NoError(t, err)

	require.Len(t, reports, 20)
	assert.Equal(t, 1, reports[0].Epoch)
	assert.Equal(t, 20, reports[19].Epoch)
	assert.Less(t, reports[19].MeanCost, reports[0].MeanCost,
		"training should reduce the mean epoch cost on a separable synthetic set")

	assert.GreaterOrEqual(t, rate, 0.0)
	assert.LessOrEqual(t, rate, 1.0)
}
