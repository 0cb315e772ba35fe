// Package classifier maps expense descriptions to spending categories.
//
// The model is loaded once at startup from a JSON artifact on disk or in S3.
// When it cannot be loaded the server keeps running with a Fallback model
// that answers a constant label.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultFallbackLabel is the category answered when no model is available.
const DefaultFallbackLabel = "Misc"

// maxArtifactSize bounds how much of an artifact Load will read.
const maxArtifactSize = 64 << 20

// ErrModelLoad wraps every failure to load a model artifact.
var ErrModelLoad = errors.New("model load failed")

// Classifier predicts one category per input text. The result has the same
// length and order as texts. Implementations are safe for concurrent use.
type Classifier interface {
	Classify(texts []string) []string
}

// Fallback answers Label for every input.
type Fallback struct {
	Label string
}

func (f Fallback) Classify(texts []string) []string {
	out := make([]string, len(texts))
	for i := range out {
		out[i] = f.Label
	}
	return out
}

// LoadOptions configures Load.
type LoadOptions struct {
	// FallbackLabel is used when the artifact cannot be loaded. Defaults to
	// DefaultFallbackLabel.
	FallbackLabel string
	// S3 fetches s3:// locations. Required only for those.
	S3 S3GetObjectAPI
}

// LoadResult reports which model Load produced.
type LoadResult struct {
	Classifier Classifier
	Source     string
	Fallback   bool
	// Err is set when Fallback is true and wraps ErrModelLoad.
	Err error
}

// Load reads the artifact at location, a filesystem path or s3://bucket/key.
// It never fails outright: on any error the result carries a Fallback
// classifier and the reason.
func Load(ctx context.Context, location string, opts LoadOptions) LoadResult {
	label := opts.FallbackLabel
	if label == "" {
		label = DefaultFallbackLabel
	}

	model, err := load(ctx, location, opts.S3)
	if err != nil {
		return LoadResult{
			Classifier: Fallback{Label: label},
			Source:     location,
			Fallback:   true,
			Err:        fmt.Errorf("%w: %s: %v", ErrModelLoad, location, err),
		}
	}

	return LoadResult{Classifier: model, Source: location}
}

func load(ctx context.Context, location string, api S3GetObjectAPI) (*NaiveBayes, error) {
	if location == "" {
		return nil, errors.New("no model location configured")
	}

	var (
		data []byte
		err  error
	)
	if IsS3Location(location) {
		data, err = fetchS3(ctx, api, location)
	} else {
		data, err = readFile(location)
	}
	if err != nil {
		return nil, err
	}

	return DecodeNaiveBayes(data)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxArtifactSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxArtifactSize {
		return nil, fmt.Errorf("artifact larger than %d bytes", maxArtifactSize)
	}
	return data, nil
}
