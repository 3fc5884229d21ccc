// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

package mlp

import (
	"image"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	timage "github.com/gomlx/gomlx/types/tensors/images"
	"github.com/gomlx/gopjrt/dtypes"
)

// Classifier serves single-image inference for a trained model. It shares the
// context (and therefore the variable values) used for training.
type Classifier struct {
	exec *context.Exec
}

// NewClassifier compiles a one-image computation over the given context: it
// expands a batch axis of size 1, runs the model and takes the argmax class.
func NewClassifier(backend backends.Backend, ctx *context.Context, config Config) *Classifier {
	// The model variables must already exist, created by training: mark the
	// context accordingly, so creating a new variable here becomes an error.
	ctx = ctx.Reuse()
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, img *graph.Node) *graph.Node {
		img = graph.InsertAxes(img, 0) // Batch dimension of size 1.
		// The image tensor comes in with 3 color channels; the model wants the
		// single grayscale channel. For grayscale sources the mean is exact.
		img = graph.ReduceMean(img, -1)
		img = graph.InsertAxes(img, -1)
		logits := config.Logits(ctx, img)
		choice := graph.ArgMax(logits, -1, dtypes.Int32)
		return graph.Reshape(choice) // Drop the batch axis, leaving a scalar.
	})
	return &Classifier{exec: exec}
}

// Classify returns the predicted digit (0 to 9) for a 28x28 grayscale image.
func (c *Classifier) Classify(img image.Image) (digit int32, err error) {
	input := timage.ToTensor(dtypes.Float32).Single(img)
	var outputs []*tensors.Tensor
	err = exceptions.TryCatch[error](func() { outputs = c.exec.Call(input) })
	if err != nil {
		return 0, err
	}
	return tensors.ToScalar[int32](outputs[0]), nil
}
