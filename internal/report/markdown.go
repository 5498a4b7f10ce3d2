package report

import (
	"fmt"
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/banshee-data/learner/internal/errs"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown converts the summary and test metrics to Markdown for quick
// review outside a browser.
func Markdown(a *Artifact) (string, error) {
	var b strings.Builder
	b.WriteString("<h1>Tabular Learner Model Report</h1>\n")
	fmt.Fprintf(&b, "<h2>Best Model: %s</h2>\n", html.EscapeString(a.ModelName))
	if a.CrossValidation {
		b.WriteString("<h2>Model Metrics from Cross-Validation Set</h2>\n")
	} else {
		b.WriteString("<h2>Model Metrics from Validation set</h2>\n")
	}
	b.WriteString(a.Results.HTML())
	b.WriteString("\n<h2>Test Metrics</h2>\n")
	b.WriteString(a.TestResults.HTML())
	b.WriteString("\n<h2>Best Model's Hyperparameters</h2>\n")
	b.WriteString(a.BestParamsTable().HTML())
	b.WriteString("\n<h2>Setup Parameters</h2>\n")
	b.WriteString(a.SetupTable().HTML())

	md, err := mdConverter.ConvertString(b.String())
	if err != nil {
		return "", errs.External("convert report to markdown", err)
	}
	return md + "\n", nil
}
