package fsutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateWithin(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		dir     string
		wantErr bool
	}{
		{"direct child", "/out/report.html", "/out", false},
		{"nested", "/out/plots/auc.png", "/out", false},
		{"dir itself", "/out", "/out", false},
		{"unclean but inside", "/out/plots/../auc.png", "/out", false},
		{"relative inside", "out/plots/auc.png", "out", false},
		{"parent escape", "/out/../etc/passwd", "/out", true},
		{"sibling prefix", "/output/auc.png", "/out", true},
		{"elsewhere", "/nowhere/pr.png", "/out", true},
		{"relative escape", "../secret", "out", true},
		{"empty dir", "/out/x", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWithin(tt.path, tt.dir)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Random Forest Classifier", "Random_Forest_Classifier"},
		{"TT (Sec)", "TT_Sec"},
		{"a/../b", "a_.._b"},
		{"", "unknown"},
		{"***", "unknown"},
		{"model-1.v2", "model-1.v2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), tt.in)
	}
}
