// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

package sgd

import (
	"testing"

	. "github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/graph/graphtest"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

// TestMomentumRecurrence checks the velocity/parameter trajectory against the
// closed-form recurrence for a constant unit gradient: with momentum=0.9 and
// learning rate 0.1 starting from P=V=0,
//
//	V1=-0.1   P1=-0.1
//	V2=-0.19  P2=-0.29
//	V3=-0.271 P3=-0.561
func TestMomentumRecurrence(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	opt := Momentum().WithLearningRate(0.1).WithMomentum(0.9).Done()

	// The loss is the parameter itself, so its gradient is always 1.
	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		pVar := ctx.VariableWithValue("p", float32(0))
		loss := pVar.ValueGraph(g)
		opt.UpdateGraph(ctx, g, loss)
		return loss
	})

	wantParams := []float32{-0.1, -0.29, -0.561}
	wantVelocities := []float32{-0.1, -0.19, -0.271}
	for step := 0; step < 3; step++ {
		exec.Call()
		pVar := ctx.InspectVariable(context.RootScope, "p")
		require.NotNil(t, pVar)
		assert.InDelta(t, wantParams[step], tensors.ToScalar[float32](pVar.Value()), 1e-6)

		velVar := ctx.InspectVariable(context.RootScope+Scope+context.ScopeSeparator, "p_velocity")
		require.NotNil(t, velVar, "velocity accumulator not found")
		assert.InDelta(t, wantVelocities[step], tensors.ToScalar[float32](velVar.Value()), 1e-6)
	}
}

// TestVelocitiesAreNotTrainable checks that the optimizer state never joins the
// set of differentiation targets.
func TestVelocitiesAreNotTrainable(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	opt := Momentum().Done()

	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		pVar := ctx.VariableWithValue("p", float32(0))
		loss := pVar.ValueGraph(g)
		opt.UpdateGraph(ctx, g, loss)
		return loss
	})
	exec.Call()
	exec.Call()

	numTrainable := 0
	ctx.EnumerateVariables(func(v *context.Variable) {
		if v.Trainable {
			numTrainable++
		}
	})
	assert.Equal(t, 1, numTrainable)
}

func TestClear(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	ctx := context.New()
	opt := Momentum().Done()

	exec := context.NewExec(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		pVar := ctx.VariableWithValue("p", float32(0))
		loss := pVar.ValueGraph(g)
		opt.UpdateGraph(ctx, g, loss)
		return loss
	})
	exec.Call()

	require.NoError(t, opt.Clear(ctx))
	velVar := ctx.InspectVariableIfLoaded(context.RootScope+Scope+context.ScopeSeparator, "p_velocity")
	assert.Nil(t, velVar)
}
