package search

import "errors"

// ErrNotFound is returned by Store.Get when no article with the given id
// exists in the index (or the mock corpus).
var ErrNotFound = errors.New("article not found")
