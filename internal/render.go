package internal

import "strings"

// RenderStory fills a template's story text with the submitted slot values.
// It is a deterministic pure function: the same template and value mapping
// always produce the same string. It never panics; unknown placeholders are
// left literal.
func RenderStory(story string, slots []Slot, values map[string]string) string {
	pairs := make([]string, 0, len(slots)*2)
	for _, slot := range slots {
		value := strings.TrimSpace(values[slot.ID])
		if value == "" {
			value = "something"
		} else if slot.Type == SlotSound && !isQuoted(value) {
			value = `"` + value + `"`
		}
		pairs = append(pairs, "{"+slot.ID+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(story)
}

func isQuoted(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"'
}
