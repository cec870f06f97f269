package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
)

// Kind classifies scraper failures
type Kind string

const (
	// KindFetch is a navigation or render failure. Fatal to a crawl.
	KindFetch Kind = "fetch"
	// KindBrowser is a browser lifecycle failure (launch, connect, shutdown).
	KindBrowser Kind = "browser"
	// KindMissingAttribute means an element lacked an attribute the rule needs.
	KindMissingAttribute Kind = "missing_attribute"
	// KindEmptyMatch means a single-match rule found nothing. Warning only.
	KindEmptyMatch Kind = "empty_match"
	// KindInvalidSelector means the query engine rejected the expression.
	KindInvalidSelector Kind = "invalid_selector"
	// KindInvalidURL means a URL could not be parsed or is not http(s).
	KindInvalidURL Kind = "invalid_url"
)

// ScraperError carries the URL and kind of a scraping failure
type ScraperError struct {
	URL     string
	Kind    Kind
	Message string
	Err     error
}

func (e *ScraperError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.URL, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether repeating the operation could succeed.
// Only fetch failures that were not caused by cancellation qualify.
func (e *ScraperError) IsRetryable() bool {
	if e.Kind != KindFetch {
		return false
	}
	return !stderrors.Is(e.Err, context.Canceled)
}

// NewScraperError creates a fetch error for urlStr
func NewScraperError(urlStr, message string, err error) *ScraperError {
	return &ScraperError{URL: urlStr, Kind: KindFetch, Message: message, Err: err}
}

// NewBrowserError creates a browser lifecycle error
func NewBrowserError(message string, err error) *ScraperError {
	return &ScraperError{Kind: KindBrowser, Message: message, Err: err}
}

// NewMissingAttributeError reports an element without the named attribute
func NewMissingAttributeError(urlStr, selectorID, attr string) *ScraperError {
	return &ScraperError{
		URL:     urlStr,
		Kind:    KindMissingAttribute,
		Message: fmt.Sprintf("selector %q matched an element without %q", selectorID, attr),
	}
}

// NewEmptyMatchError reports a single-match rule that matched nothing
func NewEmptyMatchError(urlStr, selectorID string) *ScraperError {
	return &ScraperError{
		URL:     urlStr,
		Kind:    KindEmptyMatch,
		Message: fmt.Sprintf("selector %q matched no element", selectorID),
	}
}

// NewInvalidSelectorError wraps a query compile failure
func NewInvalidSelectorError(expr string, err error) *ScraperError {
	return &ScraperError{
		Kind:    KindInvalidSelector,
		Message: fmt.Sprintf("invalid query %q", expr),
		Err:     err,
	}
}

// ForRule attaches the page URL and rule id to a query error. Errors that are
// not ScraperErrors are wrapped as invalid selectors.
func ForRule(err error, urlStr, selectorID string) *ScraperError {
	var se *ScraperError
	if !stderrors.As(err, &se) {
		return &ScraperError{
			URL:     urlStr,
			Kind:    KindInvalidSelector,
			Message: fmt.Sprintf("selector %q", selectorID),
			Err:     err,
		}
	}
	out := *se
	out.URL = urlStr
	out.Message = fmt.Sprintf("selector %q: %s", selectorID, se.Message)
	return &out
}

// IsKind reports whether err is a ScraperError of the given kind
func IsKind(err error, kind Kind) bool {
	var se *ScraperError
	if stderrors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or "" when it is not a ScraperError
func KindOf(err error) Kind {
	var se *ScraperError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable ScraperError
func IsRetryable(err error) bool {
	var se *ScraperError
	if stderrors.As(err, &se) {
		return se.IsRetryable()
	}
	return false
}

// ValidateURL checks that raw is an absolute http(s) URL
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &ScraperError{URL: raw, Kind: KindInvalidURL, Message: "malformed URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ScraperError{URL: raw, Kind: KindInvalidURL, Message: "URL scheme must be http or https"}
	}
	if u.Host == "" {
		return &ScraperError{URL: raw, Kind: KindInvalidURL, Message: "URL has no host"}
	}
	return nil
}
