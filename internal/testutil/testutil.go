// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
	return path
}

// ClassificationCSV returns a deterministic binary classification table with
// three numeric features (f1, f2, f3) followed by the label column.
// The label is a noisy linear function of the features so every model in the
// zoo can beat chance.
func ClassificationCSV(rows int) string {
	var b strings.Builder
	b.WriteString("f1,f2,f3,label\n")
	for i := 0; i < rows; i++ {
		f1 := math.Sin(float64(i)*0.7) * 3
		f2 := math.Cos(float64(i)*1.3) * 2
		f3 := float64(i%7) - 3
		score := f1 + 0.5*f2 - 0.2*f3
		label := 0
		if score > 0 {
			label = 1
		}
		fmt.Fprintf(&b, "%.4f,%.4f,%.1f,%d\n", f1, f2, f3, label)
	}
	return b.String()
}

// RegressionCSV returns a deterministic regression table with two numeric
// features (x1, x2) and target y = 2*x1 - x2 + small periodic noise.
func RegressionCSV(rows int) string {
	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := 0; i < rows; i++ {
		x1 := float64(i) / 5
		x2 := math.Cos(float64(i) * 0.9)
		y := 2*x1 - x2 + 0.05*math.Sin(float64(i)*3.1)
		fmt.Fprintf(&b, "%.4f,%.4f,%.4f\n", x1, x2, y)
	}
	return b.String()
}
