package entity

import "errors"

var (
	// ErrInvalidInput means an empty grid, zero dimensions or a bad threshold.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidClassMap is returned for empty class maps or duplicate IDs.
	ErrInvalidClassMap = errors.New("invalid class map")
	// ErrModel wraps segmentation model failures.
	ErrModel = errors.New("segmentation model error")
	// ErrImageInvalid is returned when an image fails validation.
	ErrImageInvalid = errors.New("invalid image")
	// ErrLLM wraps language model request failures.
	ErrLLM = errors.New("llm request failed")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)
