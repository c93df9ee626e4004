// Package lang tags harvested text with its language so the analysis
// reviewer can route records without re-detecting. Announcements on the
// exchange are published in Arabic and English; restricting the detector to
// those two keeps the model footprint small.
package lang

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

type Detector struct {
	detector lingua.LanguageDetector
}

func NewDetector() *Detector {
	languages := []lingua.Language{lingua.Arabic, lingua.English}
	return &Detector{
		detector: lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			Build(),
	}
}

// Detect returns the lowercase ISO 639-1 code for the text, or "" when the
// text is empty or the detector cannot commit to a language.
func (d *Detector) Detect(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	language, ok := d.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(language.IsoCode639_1().String())
}
