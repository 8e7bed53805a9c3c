package enrich

import "errors"

// ErrPublishFailed wraps a bus publish failure for an enriched article.
// Individual field-level LLM call failures are not sentinel errors: each
// falls back per field (see truncate/fallback helpers) rather than
// failing the whole article.
var ErrPublishFailed = errors.New("enrich: failed to publish enriched article")
