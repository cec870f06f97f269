package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	ErrInvalidMaxSubPages   = errors.New("invalid max sub-pages: must be non-negative")
	ErrUnknownRenderer      = errors.New("unknown renderer: use chrome, rod or static")
	ErrUnknownQueryLanguage = errors.New("unknown query language: use css or xpath")
	ErrInvalidTimeout       = errors.New("invalid timeout: request timeout must be positive and idle timeout non-negative")
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts: must be at least 1")
	ErrInvalidRetryDelay    = errors.New("invalid retry delay: must be non-negative")
	ErrInvalidPort          = errors.New("invalid port: must be between 1 and 65535")
)

// Sitemap loading errors.
var (
	ErrUnsupportedSitemapFormat = errors.New("unsupported sitemap format: use .json, .yaml or .yml")
)
