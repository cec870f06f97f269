package scraper

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/kareemsasa3/orbweaver/internal/errors"
	"github.com/kareemsasa3/orbweaver/internal/markup"
	"github.com/kareemsasa3/orbweaver/internal/pageurl"
	"github.com/kareemsasa3/orbweaver/internal/types"
)

// Evaluate applies one rule to a parsed page and returns its records in
// document order. The returned errors are per-element problems (missing
// attributes, empty single matches, invalid queries); none of them stop
// extraction of the rule's other matches.
func Evaluate(doc markup.Document, rule types.Selector, base *pageurl.Base) ([]types.Record, []error) {
	elements, err := doc.Query(rule.Selector)
	if err != nil {
		err = errors.ForRule(err, base.String(), rule.ID)
		if rule.Type == types.SelectorPagination || (rule.Multiple && rule.Type != types.SelectorHTML) {
			return nil, []error{err}
		}
		// Same shape as a single rule that matched nothing
		return []types.Record{newRecord(rule)}, []error{err}
	}

	switch rule.Type {
	case types.SelectorText:
		return evalText(elements, rule, base)
	case types.SelectorLink:
		return evalLinks(elements, rule, base, rule.Multiple)
	case types.SelectorHTML:
		return evalHTML(elements, rule, base)
	case types.SelectorPagination:
		// Pagination rules always take every match
		return evalLinks(elements, rule, base, true)
	}
	return nil, []error{fmt.Errorf("selector %q: unsupported type %q", rule.ID, rule.Type)}
}

func newRecord(rule types.Selector) types.Record {
	return types.Record{Type: rule.Type.RecordType(), SelectorID: rule.ID}
}

// cleanText trims and NFC-normalizes element text
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func evalText(elements []markup.Element, rule types.Selector, base *pageurl.Base) ([]types.Record, []error) {
	if len(elements) == 0 {
		if rule.Multiple {
			return nil, nil
		}
		return []types.Record{newRecord(rule)}, []error{errors.NewEmptyMatchError(base.String(), rule.ID)}
	}
	if !rule.Multiple {
		elements = elements[:1]
	}

	records := make([]types.Record, 0, len(elements))
	for _, el := range elements {
		rec := newRecord(rule)
		rec.Text = cleanText(el.Text())
		records = append(records, rec)
	}
	return records, nil
}

func evalLinks(elements []markup.Element, rule types.Selector, base *pageurl.Base, multiple bool) ([]types.Record, []error) {
	if len(elements) == 0 {
		if multiple {
			return nil, nil
		}
		return []types.Record{newRecord(rule)}, []error{errors.NewEmptyMatchError(base.String(), rule.ID)}
	}
	if !multiple {
		elements = elements[:1]
	}

	var (
		records []types.Record
		errs    []error
	)
	for _, el := range elements {
		href, ok := el.Attr("href")
		if !ok {
			errs = append(errs, errors.NewMissingAttributeError(base.String(), rule.ID, "href"))
			continue
		}
		link, err := base.Resolve(href)
		if err != nil {
			errs = append(errs, &errors.ScraperError{
				URL:     base.String(),
				Kind:    errors.KindInvalidURL,
				Message: fmt.Sprintf("selector %q: cannot resolve href %q", rule.ID, href),
				Err:     err,
			})
			continue
		}

		rec := newRecord(rule)
		rec.Text = cleanText(el.Text())
		rec.Link = link
		records = append(records, rec)
	}
	return records, errs
}

// evalHTML returns the outer markup of the first match; Multiple is ignored
func evalHTML(elements []markup.Element, rule types.Selector, base *pageurl.Base) ([]types.Record, []error) {
	rec := newRecord(rule)
	if len(elements) == 0 {
		return []types.Record{rec}, []error{errors.NewEmptyMatchError(base.String(), rule.ID)}
	}

	html, err := elements[0].OuterHTML()
	if err != nil {
		return nil, []error{fmt.Errorf("selector %q: render outer html: %w", rule.ID, err)}
	}
	rec.HTML = html
	return []types.Record{rec}, nil
}
