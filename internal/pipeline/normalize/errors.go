package normalize

import "errors"

// ErrPublishFailed wraps a bus publish failure for a normalized article.
// Per-field translation failures are not included here: they are logged
// and the article is published with the field left untranslated instead.
var ErrPublishFailed = errors.New("normalize: failed to publish normalized article")
