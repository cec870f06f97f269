package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/kareemsasa3/orbweaver/internal/scraper"
)

// MarkdownWriter renders a report as GitHub-flavored Markdown
type MarkdownWriter struct {
	output io.Writer
}

func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

func (w *MarkdownWriter) Write(r *Report) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, r)
	for _, g := range r.Groups {
		w.writeGroup(md, g)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by orbweaver on %s*", r.Generated.Format("2006-01-02 15:04:05 MST"))
	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	title := "Crawl Report"
	if r.SitemapID != "" {
		title += ": " + r.SitemapID
	}
	md.H1(title)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + r.StartURL + "`"},
			{"Pages", strconv.Itoa(r.Stats.Pages)},
			{"Visited", strconv.Itoa(r.Stats.Visited)},
			{"Links Discovered", strconv.Itoa(r.Stats.LinksDiscovered)},
			{"Warnings", strconv.Itoa(r.Stats.Warnings)},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeGroup(md *markdown.Markdown, g Group) {
	md.H2("Origin `" + g.Origin + "`")
	md.PlainText("")

	if len(g.Results) == 0 {
		md.PlainText("No pages.")
		md.PlainText("")
		return
	}

	for _, res := range g.Results {
		w.writePage(md, res)
	}
}

func (w *MarkdownWriter) writePage(md *markdown.Markdown, res scraper.PageResult) {
	md.H3(res.Link)
	md.PlainText("")

	var rows [][]string
	for _, rr := range res.Rules {
		if len(rr.Records) == 0 {
			rows = append(rows, []string{rr.RuleID, "-", "-", "-"})
			continue
		}
		for _, rec := range rr.Records {
			text := rec.Text
			if rec.HTML != "" {
				text = "`" + truncateString(oneLine(rec.HTML), 60) + "`"
			}
			rows = append(rows, []string{
				rr.RuleID,
				string(rec.Type),
				cell(truncateString(oneLine(text), 80)),
				cell(rec.Link),
			})
		}
	}

	if len(rows) == 0 {
		md.PlainText("No rules apply to this page.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Rule", "Type", "Text", "Link"},
		Rows:   rows,
	})
	md.PlainText("")
}

// cell escapes table separators and fills empty cells
func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateString truncates s to maxLen runes with an ellipsis
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
