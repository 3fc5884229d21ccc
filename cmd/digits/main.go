// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// digits trains a two-layer perceptron on the MNIST handwritten-digit dataset
// with momentum SGD, printing the mean cost per epoch and the final validation
// error:
//
//	$ digits --data ~/tmp/digits --epochs 10
//	[Epoch 1] Cost = 0.2613
//	...
//	Validation Error = 2.87%
package main

import (
	"flag"
	"fmt"

	"github.com/axisml/digits/batch"
	"github.com/axisml/digits/mlp"
	"github.com/axisml/digits/mnist"
	"github.com/axisml/digits/sgd"
	"github.com/axisml/digits/trainer"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/janpfeifer/must"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	_ "github.com/gomlx/gomlx/backends/default"
)

var (
	flagDataDir   = flag.String("data", "~/tmp/digits", "Directory to cache the downloaded dataset.")
	flagBatchSize = flag.Int("batch_size", 128, "Minibatch size for training and validation.")
	flagHidden    = flag.Int("hidden", mlp.DefaultHiddenUnits, "Number of hidden units.")
	flagLR        = flag.Float64("learning_rate", sgd.DefaultLearningRate, "Learning rate.")
	flagMomentum  = flag.Float64("momentum", sgd.DefaultMomentum, "Momentum coefficient.")
	flagEpochs    = flag.Int("epochs", 10, "Number of passes over the training set.")
	flagL2        = flag.Float64("l2", 0, "L2 regularization of the weight matrices, 0 to disable.")
	flagProgress  = flag.Bool("progress", true, "Show a progress bar while training.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	if err := exceptions.TryCatch[error](run); err != nil {
		klog.Exitf("Error:\n%+v", err)
	}
}

func run() {
	must.M(mnist.Download(*flagDataDir))
	trainSplit := must.M1(mnist.Load(*flagDataDir, "train"))
	validSplit := must.M1(mnist.Load(*flagDataDir, "test"))
	klog.Infof("loaded %d training and %d validation examples (%s of pixel data)",
		trainSplit.NumExamples(), validSplit.NumExamples(),
		humanize.IBytes(uint64((trainSplit.NumExamples()+validSplit.NumExamples())*mnist.ExampleSize*4)))

	backend := backends.MustNew()
	klog.V(1).Infof("backend: %s", backend.Description())
	ctx := context.New()

	config := mlp.NewConfig(*flagHidden)
	config.L2 = *flagL2
	optimizer := sgd.Momentum().
		WithLearningRate(*flagLR).
		WithMomentum(*flagMomentum).
		Done()

	// Train computation: batch mean cost plus the embedded momentum updates of
	// every parameter and velocity, applied once per invocation.
	trainExec := context.NewExec(backend, ctx, func(ctx *context.Context, images, labels *graph.Node) *graph.Node {
		loss := config.Loss(ctx, images, labels)
		optimizer.UpdateGraph(ctx, loss.Graph(), loss)
		return loss
	})
	// Error computation: per-example mismatch vector, no side effects. It only
	// runs after training, so it reuses the variables the train step created.
	errorExec := context.NewExec(backend, ctx.Reuse(), func(ctx *context.Context, images, labels *graph.Node) *graph.Node {
		return config.Mismatch(ctx, images, labels)
	})

	trainSource := must.M1(batch.New(trainSplit, *flagBatchSize))
	batchesPerEpoch := trainSource.BatchesPerEpoch()
	steps := *flagEpochs * batchesPerEpoch
	if steps == 0 {
		// Degenerate batch size larger than the dataset: still take one wrapped
		// batch per requested epoch, no epoch reports will fire.
		steps = *flagEpochs
	}
	trainSource = trainSource.WithMaxYields(steps)
	validSource := must.M1(batch.New(validSplit, *flagBatchSize))

	var bar *progressbar.ProgressBar
	if *flagProgress {
		bar = progressbar.Default(int64(steps), "training")
	}

	rate := must.M1(trainer.Run(trainer.Config{
		Train:              trainSource,
		Validation:         validSource,
		BatchesPerEpoch:    batchesPerEpoch,
		ValidationExamples: validSplit.NumExamples(),
		TrainStep: func(images, labels *tensors.Tensor) (cost float64, err error) {
			err = exceptions.TryCatch[error](func() {
				cost = float64(tensors.ToScalar[float32](trainExec.Call(images, labels)[0]))
			})
			if bar != nil {
				_ = bar.Add(1)
			}
			return
		},
		ErrorStep: func(images, labels *tensors.Tensor) (mismatches []bool, err error) {
			err = exceptions.TryCatch[error](func() {
				mismatches = tensors.CopyFlatData[bool](errorExec.Call(images, labels)[0])
			})
			return
		},
		OnReport: func(r trainer.Report) {
			if bar != nil {
				_ = bar.Clear()
			}
			fmt.Printf("[Epoch %d] Cost = %.4f\n", r.Epoch, r.MeanCost)
		},
	}))
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	fmt.Printf("Validation Error = %.2f%%\n", rate*100)
}
