package automl

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/banshee-data/learner/internal/tabular"
)

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&LinearRegression{})
	gob.Register(&KNeighbors{})
	gob.Register(&GaussianNB{})
	gob.Register(&DecisionTree{})
	gob.Register(&RandomForest{})
	gob.Register(&GradientBoosting{})
	gob.Register(&Dummy{})
}

// Bundle is the persisted form of a selected model: the estimator plus the
// fitted preprocessing and label mapping needed to score raw rows.
type Bundle struct {
	Task         Task
	Target       string
	Labels       []string
	Preprocessor *Preprocessor
	Model        Model
}

// Encode gob-encodes the bundle.
func (b *Bundle) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("encode model bundle: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeBundle decodes a bundle produced by Encode.
func DecodeBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode model bundle: %w", err)
	}
	return &b, nil
}

// Predict scores raw rows. Classification results are mapped back to the
// original labels.
func (b *Bundle) Predict(ds *tabular.Dataset) ([]string, error) {
	X, err := b.Preprocessor.Transform(ds)
	if err != nil {
		return nil, err
	}
	pred := b.Model.Predict(X)
	out := make([]string, len(pred))
	for i, v := range pred {
		if b.Task == Classification {
			out[i] = b.Labels[int(v)]
		} else {
			out[i] = ftoa(v)
		}
	}
	return out, nil
}
