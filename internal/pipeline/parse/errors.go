package parse

import "errors"

// ErrPublishFailed wraps a bus publish failure for a cleaned article,
// distinct from the per-article conditions (too short, duplicate,
// unparseable) that ProcessOne swallows and logs rather than returns.
var ErrPublishFailed = errors.New("parse: failed to publish cleaned article")
