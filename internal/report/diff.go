package report

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffResult is a patch between two texts plus changed line counts
type DiffResult struct {
	Text    string `json:"diff"`
	Added   int    `json:"lines_added"`
	Removed int    `json:"lines_removed"`
}

// Diff compares two texts line by line
func Diff(oldText, newText string) DiffResult {
	dmp := diffmatchpatch.New()
	text1, text2, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(text1, text2, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var res DiffResult
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			res.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			res.Removed += countLines(d.Text)
		}
	}

	patches := dmp.PatchMake(oldText, newText)
	res.Text = dmp.PatchToText(patches)
	return res
}

// countLines counts lines of a diff chunk; a trailing newline does not start
// a new line.
func countLines(text string) int {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

// MarshalJSON renders r the way JSONWriter does, indented, for diffing
func MarshalJSON(r *Report) (string, error) {
	var buf bytes.Buffer
	if err := NewJSONWriter(&buf, WithPrettyPrint()).Write(r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
