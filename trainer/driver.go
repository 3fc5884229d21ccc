// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package trainer runs the minibatch training loop and the single-pass
// validation loop over two pre-compiled computations.
//
// The driver is strictly sequential: every step is a blocking call that fully
// completes (including any embedded parameter updates) before the next batch is
// drawn. It does not print; epoch costs are delivered as Report events to an
// optional callback, and the final misclassification rate is returned.
package trainer

import (
	"io"

	"github.com/gomlx/gomlx/ml/train"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

// Report is one epoch-window cost report: the arithmetic mean of the last
// BatchesPerEpoch per-minibatch costs. Epoch is 1-based.
type Report struct {
	Epoch    int
	MeanCost float64
}

// StepFn invokes the compiled train computation on one minibatch: it returns
// the batch mean cost and, as a side effect, applies one full optimizer step.
type StepFn func(images, labels *tensors.Tensor) (cost float64, err error)

// ErrorFn invokes the compiled error computation on one minibatch: it returns
// the per-example mismatch vector. It must be free of side effects.
type ErrorFn func(images, labels *tensors.Tensor) (mismatches []bool, err error)

// Config wires the driver to its collaborators.
type Config struct {
	// Train is the training minibatch source, bounded to a known number of
	// yields. It is consumed in source order until exhaustion.
	Train train.Dataset

	// Validation is the validation minibatch source. It is reset and iterated
	// exactly once after training.
	Validation train.Dataset

	// BatchesPerEpoch is floor(training examples / batch size), computed once.
	// A value of zero (batch size larger than the dataset) means no epoch
	// report is ever emitted; training still runs.
	BatchesPerEpoch int

	// ValidationExamples is the declared example count of the validation split.
	// The batching mechanism may overfill the last batch; results are truncated
	// to exactly this count.
	ValidationExamples int

	TrainStep StepFn
	ErrorStep ErrorFn

	// OnReport, if set, receives one Report per completed epoch window.
	OnReport func(Report)
}

func (cfg *Config) validate() error {
	if cfg.Train == nil || cfg.Validation == nil {
		return errors.New("trainer: both Train and Validation sources must be set")
	}
	if cfg.TrainStep == nil || cfg.ErrorStep == nil {
		return errors.New("trainer: both TrainStep and ErrorStep must be set")
	}
	if cfg.BatchesPerEpoch < 0 {
		return errors.Errorf("trainer: BatchesPerEpoch must be >= 0, got %d", cfg.BatchesPerEpoch)
	}
	if cfg.ValidationExamples <= 0 {
		return errors.Errorf("trainer: ValidationExamples must be positive, got %d", cfg.ValidationExamples)
	}
	return nil
}

// Run drains the training source, emitting one Report per full epoch window,
// then makes a single validation pass and returns the overall misclassification
// rate in [0, 1].
//
// A trailing window shorter than BatchesPerEpoch is dropped unreported. Any
// failure of a source or of a compiled computation is fatal: Run stops and
// returns the error.
func Run(cfg Config) (errorRate float64, err error) {
	if err = cfg.validate(); err != nil {
		return 0, err
	}

	costs := make([]float64, 0, cfg.BatchesPerEpoch)
	consumed := 0
	for {
		_, inputs, labels, yieldErr := cfg.Train.Yield()
		if yieldErr == io.EOF {
			break
		}
		if yieldErr != nil {
			return 0, errors.WithMessagef(yieldErr, "drawing training batch %d", consumed)
		}
		cost, stepErr := cfg.TrainStep(inputs[0], labels[0])
		if stepErr != nil {
			return 0, errors.WithMessagef(stepErr, "train step %d", consumed)
		}
		consumed++
		costs = append(costs, cost)
		if cfg.BatchesPerEpoch > 0 && len(costs) == cfg.BatchesPerEpoch {
			if cfg.OnReport != nil {
				cfg.OnReport(Report{
					Epoch:    consumed / cfg.BatchesPerEpoch,
					MeanCost: mean(costs),
				})
			}
			costs = costs[:0]
		}
	}

	cfg.Validation.Reset()
	var mismatches []bool
	for batch := 0; ; batch++ {
		_, inputs, labels, yieldErr := cfg.Validation.Yield()
		if yieldErr == io.EOF {
			break
		}
		if yieldErr != nil {
			return 0, errors.WithMessagef(yieldErr, "drawing validation batch %d", batch)
		}
		batchMismatches, stepErr := cfg.ErrorStep(inputs[0], labels[0])
		if stepErr != nil {
			return 0, errors.WithMessagef(stepErr, "error step on validation batch %d", batch)
		}
		mismatches = append(mismatches, batchMismatches...)
	}
	if len(mismatches) < cfg.ValidationExamples {
		return 0, errors.Errorf("validation pass produced %d results for %d declared examples",
			len(mismatches), cfg.ValidationExamples)
	}
	mismatches = mismatches[:cfg.ValidationExamples]

	wrong := 0
	for _, m := range mismatches {
		if m {
			wrong++
		}
	}
	return float64(wrong) / float64(len(mismatches)), nil
}

func mean[T constraints.Float](values []T) T {
	var sum T
	for _, v := range values {
		sum += v
	}
	return sum / T(len(values))
}
