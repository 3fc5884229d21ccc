// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package sgd implements stochastic gradient descent with momentum as a graph
// update subgraph.
//
// For every trainable parameter P with gradient G of the scalar loss, a
// persistent velocity accumulator V (zero-initialized, same shape as P) is
// updated as
//
//	V_new = momentum*V_old - learning_rate*G
//	P_new = P_old + V_new
//
// Every update reads only old values, and all assignments are applied together,
// once per invocation of the compiled computation that embeds them. Velocity
// variables are created non-trainable, so they are never enumerated as
// differentiation targets.
package sgd

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/ml/context/initializers"
	"github.com/gomlx/gomlx/ml/train/optimizers"
)

// Scope is the context scope under which velocity variables are created.
const Scope = "momentum_sgd"

// Default hyperparameters of the reference scenario.
const (
	DefaultLearningRate = 0.1
	DefaultMomentum     = 0.9
)

// MomentumConfig configures a momentum-SGD optimizer. Hyperparameters are
// fixed once Done is called; UpdateGraph embeds one optimizer step into the
// graph being built.
type MomentumConfig struct {
	learningRate float64
	momentum     float64
	useStepDecay bool
}

// Momentum creates a momentum-SGD optimizer with the default hyperparameters
// (learning rate 0.1, momentum 0.9, no decay).
func Momentum() *MomentumConfig {
	return &MomentumConfig{
		learningRate: DefaultLearningRate,
		momentum:     DefaultMomentum,
	}
}

// WithLearningRate sets the learning rate. It returns itself to allow chaining.
func (o *MomentumConfig) WithLearningRate(learningRate float64) *MomentumConfig {
	o.learningRate = learningRate
	return o
}

// WithMomentum sets the momentum coefficient. It returns itself to allow
// chaining.
func (o *MomentumConfig) WithMomentum(momentum float64) *MomentumConfig {
	o.momentum = momentum
	return o
}

// WithStepDecay enables dividing the learning rate by sqrt(global step). It is
// disabled by default. It returns itself to allow chaining.
func (o *MomentumConfig) WithStepDecay(enabled bool) *MomentumConfig {
	o.useStepDecay = enabled
	return o
}

// Done returns the configured optimizer.
func (o *MomentumConfig) Done() *MomentumConfig {
	return o
}

// UpdateGraph builds the velocity and parameter update assignments for one
// training step.
func (o *MomentumConfig) UpdateGraph(ctx *context.Context, g *Graph, loss *Node) {
	if !loss.Shape().IsScalar() {
		exceptions.Panicf("momentum-SGD requires a scalar loss, got loss.shape=%s", loss.Shape())
	}
	grads := ctx.BuildTrainableVariablesGradientsGraph(loss)
	if len(grads) == 0 {
		return
	}
	dtype := loss.DType()

	lrVar := optimizers.LearningRateVar(ctx, dtype, o.learningRate)
	learningRate := lrVar.ValueGraph(g)
	globalStep := optimizers.IncrementGlobalStepGraph(ctx, g, dtype)
	if o.useStepDecay {
		learningRate = Div(learningRate, Sqrt(globalStep))
	}

	ii := 0
	ctx.EnumerateVariables(func(v *context.Variable) {
		if !v.Trainable || !v.InUseByGraph(g) {
			return
		}
		grad := grads[ii]
		ii++
		lrCast := learningRate
		if lrCast.DType() != grad.DType() {
			lrCast = ConvertDType(learningRate, grad.DType())
		}

		velocity := o.velocityVariable(ctx, v)
		// Both updates read the pre-step values of velocity and parameter.
		velocityNew := Sub(MulScalar(velocity.ValueGraph(g), o.momentum), Mul(lrCast, grad))
		velocity.SetValueGraph(velocityNew)
		v.SetValueGraph(Add(v.ValueGraph(g), velocityNew))
	})
	if ii != len(grads) {
		exceptions.Panicf("momentum-SGD saw %d trainable variables but %d gradients -- did the set of "+
			"trainable variables change during graph building?", ii, len(grads))
	}
}

// velocityVariable returns the velocity accumulator for the given trainable
// variable, creating it zero-initialized and non-trainable if needed.
func (o *MomentumConfig) velocityVariable(ctx *context.Context, trainable *context.Variable) *context.Variable {
	scopePath := fmt.Sprintf("%s%s%s", context.ScopeSeparator, Scope, trainable.Scope())
	name := fmt.Sprintf("%s_velocity", trainable.Name())
	return ctx.Checked(false).
		InAbsPath(scopePath).
		WithInitializer(initializers.Zero).
		VariableWithShape(name, trainable.Shape()).
		SetTrainable(false)
}

// Clear deletes all velocity variables, for example to shrink a context that
// will only be used for inference.
func (o *MomentumConfig) Clear(ctx *context.Context) error {
	ctx.In(Scope).DeleteVariablesInScope()
	return nil
}
