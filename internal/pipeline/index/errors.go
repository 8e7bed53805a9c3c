package index

import "errors"

// ErrIndexWriteFailed wraps a search store write failure.
var ErrIndexWriteFailed = errors.New("index: failed to write article to search store")
