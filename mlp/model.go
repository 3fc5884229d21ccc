// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package mlp builds the two-layer perceptron expressions for digit
// classification: the logits of the network, the scalar training cost and the
// per-example mismatch vector used for validation.
//
// All expressions are pure functions of the inputs and of the model variables
// held in a context; the only mutable state is the variable values, and nothing
// here updates them (see the sgd package for the update subgraph).
package mlp

import (
	"github.com/axisml/digits/axes"
	"github.com/axisml/digits/mnist"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/train/losses"
	"github.com/gomlx/gopjrt/dtypes"
)

// Default hyperparameters of the reference scenario.
const (
	DefaultHiddenUnits = 100
	DefaultInitScale   = 0.1
	DefaultWeightsSeed = 42
)

// Config describes the network. The axis records fix every dimension of the
// model before any computation is compiled; the batch dimension is taken from
// the input tensors.
type Config struct {
	Channel, Height, Width Axis // per-example image axes.
	Hidden                 Axis // hidden-layer units.
	Classes                Axis // output classes.

	DType dtypes.DType

	// WeightsSeed and InitScale parameterize the uniform [-InitScale, InitScale]
	// weight initialization. Biases start at zero.
	WeightsSeed int64
	InitScale   float64

	// L2, if positive, adds L2 regularization of the weight matrices (not the
	// biases) to the cost, scaled by this factor.
	L2 float64
}

// Axis is an alias to axes.Axis.
type Axis = axes.Axis

// NewConfig returns a Config for MNIST-shaped images with the given number of
// hidden units and the default initialization.
func NewConfig(hiddenUnits int) Config {
	return Config{
		Channel:     axes.New("channel", mnist.Channels),
		Height:      axes.New("height", mnist.Height),
		Width:       axes.New("width", mnist.Width),
		Hidden:      axes.New("hidden", hiddenUnits),
		Classes:     axes.New("class", mnist.NumClasses),
		DType:       dtypes.Float32,
		WeightsSeed: DefaultWeightsSeed,
		InitScale:   DefaultInitScale,
	}
}

// Features returns the flattened per-example input size.
func (c Config) Features() int {
	return axes.Size(c.Channel, c.Height, c.Width)
}

// dense is one affine layer: x·W + b, with W shaped [in, out] and b shaped
// [out]. It returns the result and the weights node, for regularization.
func dense(ctx *context.Context, x *Node, in, out Axis, seed int64, scale float64) (y, weights *Node) {
	g := x.Graph()
	dtype := x.DType()
	ctx.SetParam(initializers.ParamInitialSeed, seed)
	wVar := ctx.WithInitializer(initializers.RandomUniformFn(ctx, -scale, scale)).
		VariableWithShape("weights", axes.Shape(dtype, in, out))
	bVar := ctx.WithInitializer(initializers.Zero).
		VariableWithShape("biases", axes.Shape(dtype, out))
	weights = wVar.ValueGraph(g)
	y = Add(MatMul(x, weights), InsertAxes(bVar.ValueGraph(g), 0))
	return
}

// build assembles the network and returns the logits plus the weight matrices.
func (c Config) build(ctx *context.Context, images *Node) (logits *Node, weights []*Node) {
	batchSize := images.Shape().Dimensions[0]
	x := Reshape(images, batchSize, c.Features())

	feature := axes.New("feature", c.Features())
	ctx = ctx.In("mlp")
	hidden, w0 := dense(ctx.In("hidden"), x, feature, c.Hidden, c.WeightsSeed, c.InitScale)
	hidden = Max(hidden, ZerosLike(hidden))
	logits, w1 := dense(ctx.In("output"), hidden, c.Hidden, c.Classes, c.WeightsSeed+1, c.InitScale)
	return logits, []*Node{w0, w1}
}

// Logits returns the raw class scores for a batch of images shaped
// [batch, height, width, channels], as a [batch, classes] node.
func (c Config) Logits(ctx *context.Context, images *Node) *Node {
	logits, _ := c.build(ctx, images)
	return logits
}

// Loss returns the scalar mean cost of the batch: binary cross-entropy of the
// logits against one-hot labels, averaged over the batch, plus the optional L2
// term.
func (c Config) Loss(ctx *context.Context, images, labels *Node) *Node {
	logits, weights := c.build(ctx, images)
	oneHot := OneHot(labels, c.Classes.Length, logits.DType())
	loss := ReduceAllMean(losses.BinaryCrossentropyLogits([]*Node{oneHot}, []*Node{logits}))
	if c.L2 > 0 {
		for _, w := range weights {
			loss = Add(loss, MulScalar(ReduceAllSum(Mul(w, w)), c.L2))
		}
	}
	return loss
}

// Mismatch returns the per-example boolean mismatch vector of the batch: true
// where argmax of the logits differs from the label. It has no side effects and
// is idempotent for a fixed variable state.
func (c Config) Mismatch(ctx *context.Context, images, labels *Node) *Node {
	logits := c.Logits(ctx, images)
	predictions := ArgMax(logits, -1, labels.DType())
	return NotEqual(predictions, labels)
}
