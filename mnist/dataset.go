// Copyright 2026 The Digits Authors. SPDX-License-Identifier: Apache-2.0

// Package mnist downloads and parses the MNIST database of handwritten digits.
//
// It exposes the data as two fixed splits -- train and validation -- with
// float32 pixels scaled to [0, 1] and int8 class labels in [0, 9]. Batching is
// left to the batch package.
package mnist

import (
	"compress/gzip"
	"encoding/binary"
	"image"
	"net/url"
	"os"
	"path"

	"github.com/gomlx/gomlx/ml/data"
	"github.com/pkg/errors"
)

const (
	downloadURL         = "https://storage.googleapis.com/cvdf-datasets/mnist"
	trainImagesFilename = "train-images-idx3-ubyte.gz"
	trainLabelsFilename = "train-labels-idx1-ubyte.gz"
	testImagesFilename  = "t10k-images-idx3-ubyte.gz"
	testLabelsFilename  = "t10k-labels-idx1-ubyte.gz"

	// Width, Height and Channels describe the fixed per-example image shape.
	Width    = 28
	Height   = 28
	Channels = 1

	// NumClasses is the number of digit classes.
	NumClasses = 10

	imageMagic = 0x00000803
	labelMagic = 0x00000801
)

// ExampleSize is the number of pixels per example.
const ExampleSize = Width * Height * Channels

type imageFileHeader struct {
	Magic     int32
	NumImages int32
	Height    int32
	Width     int32
}

type labelFileHeader struct {
	Magic     int32
	NumLabels int32
}

// Download fetches the four MNIST files into baseDir, skipping files already
// cached there.
func Download(baseDir string) error {
	baseDir = data.ReplaceTildeInDir(baseDir)
	if err := os.MkdirAll(baseDir, 0777); err != nil {
		return errors.Wrapf(err, "creating data directory %q", baseDir)
	}
	files := []string{trainImagesFilename, trainLabelsFilename, testImagesFilename, testLabelsFilename}
	for _, file := range files {
		fileURL, _ := url.JoinPath(downloadURL, file)
		filePath := path.Join(baseDir, file)
		if err := data.DownloadIfMissing(fileURL, filePath, ""); err != nil {
			return errors.WithMessagef(err, "downloading %q", fileURL)
		}
	}
	return nil
}

// Split is one fixed partition of the dataset (train or validation), fully
// loaded in memory.
type Split struct {
	name     string
	images   []float32 // NumExamples()*ExampleSize values, row-major, scaled to [0, 1].
	labels   []int8
	examples int
}

// NewSplit builds a split from raw example data. The images slice must hold
// ExampleSize values per label.
func NewSplit(name string, images []float32, labels []int8) (*Split, error) {
	if len(images) != len(labels)*ExampleSize {
		return nil, errors.Errorf("split %q: %d image values for %d labels, want %d per label",
			name, len(images), len(labels), ExampleSize)
	}
	return &Split{
		name:     name,
		images:   images,
		labels:   labels,
		examples: len(labels),
	}, nil
}

// Name identifies the split.
func (s *Split) Name() string { return s.name }

// NumExamples returns the total number of examples in the split.
func (s *Split) NumExamples() int { return s.examples }

// Image returns the pixels of example i as a slice into the split's storage.
func (s *Split) Image(i int) []float32 {
	return s.images[i*ExampleSize : (i+1)*ExampleSize]
}

// Label returns the class of example i.
func (s *Split) Label(i int) int8 { return s.labels[i] }

// GrayImage renders example i as an 8-bit grayscale image.
func (s *Split) GrayImage(i int) image.Image {
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for p, v := range s.Image(i) {
		img.Pix[p] = byte(v * 255)
	}
	return img
}

// Load parses one split from the files in baseDir. Mode is either "train"
// (60000 examples) or "test" (10000 examples, used as the validation split).
func Load(baseDir, mode string) (*Split, error) {
	baseDir = data.ReplaceTildeInDir(baseDir)
	var imagesFile, labelsFile string
	switch mode {
	case "train":
		imagesFile, labelsFile = trainImagesFilename, trainLabelsFilename
	case "test":
		imagesFile, labelsFile = testImagesFilename, testLabelsFilename
	default:
		return nil, errors.Errorf("unknown split mode %q, want \"train\" or \"test\"", mode)
	}
	images, err := loadImageFile(path.Join(baseDir, imagesFile))
	if err != nil {
		return nil, err
	}
	labels, err := loadLabelFile(path.Join(baseDir, labelsFile))
	if err != nil {
		return nil, err
	}
	return NewSplit(mode, images, labels)
}

func loadImageFile(filename string) ([]float32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", filename)
	}
	defer func() { _ = f.Close() }()

	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "gunzipping %q", filename)
	}
	defer func() { _ = reader.Close() }()

	var header imageFileHeader
	if err = binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "reading header of %q", filename)
	}
	if header.Magic != imageMagic || header.Width != Width || header.Height != Height {
		return nil, errors.Errorf("%q is not a MNIST image file (magic=%#x, %dx%d)",
			filename, header.Magic, header.Width, header.Height)
	}

	raw := make([]byte, int(header.NumImages)*ExampleSize)
	if err = binary.Read(reader, binary.BigEndian, raw); err != nil {
		return nil, errors.Wrapf(err, "reading %d images from %q", header.NumImages, filename)
	}
	images := make([]float32, len(raw))
	for i, b := range raw {
		images[i] = float32(b) / 255
	}
	return images, nil
}

func loadLabelFile(filename string) ([]int8, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %q", filename)
	}
	defer func() { _ = f.Close() }()

	reader, err := gzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "gunzipping %q", filename)
	}
	defer func() { _ = reader.Close() }()

	var header labelFileHeader
	if err = binary.Read(reader, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrapf(err, "reading header of %q", filename)
	}
	if header.Magic != labelMagic {
		return nil, errors.Errorf("%q is not a MNIST label file (magic=%#x)", filename, header.Magic)
	}

	labels := make([]int8, header.NumLabels)
	if err = binary.Read(reader, binary.BigEndian, labels); err != nil {
		return nil, errors.Wrapf(err, "reading %d labels from %q", header.NumLabels, filename)
	}
	return labels, nil
}
