package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrEmbeddingUnavailable = errors.New("embedding computation unavailable")
	ErrVenueDown            = errors.New("venue unavailable")
	ErrRateLimited          = errors.New("rate limited")
)
