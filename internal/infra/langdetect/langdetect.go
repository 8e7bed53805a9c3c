// Package langdetect wraps whatlanggo's statistical language detector for
// the normalizer stage. No language-detection library appears anywhere in
// the retrieval pack this project was grounded on (teacher or
// other_examples), so whatlanggo is named as a fully out-of-pack
// dependency per DESIGN.md rather than grounded on a worked example.
package langdetect

import "github.com/abadojack/whatlanggo"

// Detector detects the ISO 639-1 language code of a piece of text.
type Detector interface {
	Detect(text string) string
}

// Whatlang is the default Detector, backed by whatlanggo.
type Whatlang struct{}

// New constructs a Whatlang detector.
func New() Whatlang {
	return Whatlang{}
}

// Detect returns the detected language's ISO 639-1 code, defaulting to
// "en" when detection is inconclusive or the input is too short to
// classify reliably.
func (Whatlang) Detect(text string) string {
	info := whatlanggo.Detect(text)
	if info.Lang == whatlanggo.Und || !info.IsReliable() {
		return "en"
	}
	code := info.Lang.Iso6391()
	if code == "" {
		return "en"
	}
	return code
}
