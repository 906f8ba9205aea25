package extract

import (
	"regexp"
	"strings"
)

// Fixed regular-expression families for typed entity recognition. Each
// recognized entity inherits the recognizer's overall confidence.
var (
	// DD/MM/YYYY, DD-MM-YYYY, YYYY-MM-DD and "15 Jan 2024" style dates.
	dateEntityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{2,4}\b`),
	}

	// Currency amounts: either an explicit currency marker or a two-decimal
	// / thousands-separated number. Bare integers are too noisy to tag.
	amountEntityPattern = regexp.MustCompile(
		`(?:KES|KSh\.?|Ksh\.?|USD|\$|€|£)\s*\d[\d,]*(?:\.\d{1,2})?|\b\d{1,3}(?:,\d{3})+(?:\.\d{2})?\b|\b\d+\.\d{2}\b`)

	// Kenyan mobile numbers, international or local form.
	phoneEntityPattern = regexp.MustCompile(`(?:\+254|254|0)7\d{8}\b`)

	// "Label: value" lines for structured key-value extraction.
	keyValuePattern = regexp.MustCompile(`(?m)^\s*([A-Za-z][A-Za-z /]{2,40}?)\s*[:：]\s*(\S[^\n]*)$`)
)

// extractEntities runs the fixed entity families over text, tagging each hit
// with the recognizer confidence.
func extractEntities(text string, confidence float64) []Entity {
	var entities []Entity

	seen := make(map[string]bool)
	add := func(typ, value string) {
		value = strings.TrimSpace(value)
		key := typ + "|" + value
		if value == "" || seen[key] {
			return
		}
		seen[key] = true
		entities = append(entities, Entity{Type: typ, Value: value, Confidence: confidence})
	}

	for _, pat := range dateEntityPatterns {
		for _, m := range pat.FindAllString(text, -1) {
			add("date", m)
		}
	}
	for _, m := range amountEntityPattern.FindAllString(text, -1) {
		add("amount", m)
	}
	for _, m := range phoneEntityPattern.FindAllString(text, -1) {
		add("phone", m)
	}

	return entities
}

// extractKeyValuePairs pulls "Label: value" lines into a flat map. Later
// occurrences of the same label win.
func extractKeyValuePairs(text string) map[string]string {
	matches := keyValuePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	kv := make(map[string]string, len(matches))
	for _, m := range matches {
		key := strings.ToLower(strings.TrimSpace(m[1]))
		key = strings.ReplaceAll(key, " ", "_")
		kv[key] = strings.TrimSpace(m[2])
	}
	return kv
}
