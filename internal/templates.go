package internal

import "sort"

// SlotType is one of the typed placeholders a template story can reference.
type SlotType string

const (
	SlotAdjective SlotType = "adjective"
	SlotName      SlotType = "name"
	SlotVerb      SlotType = "verb"
	SlotPlace     SlotType = "place"
	SlotSound     SlotType = "sound"
	SlotNoun      SlotType = "noun"
)

const (
	maxAdjectiveLen = 24
	maxNameLen      = 24
	maxVerbLen      = 24
	maxPlaceLen     = 32
	maxSoundLen     = 16
	maxNounLen      = 24
)

// maxValueLen returns the submission length bound for a slot type.
func maxValueLen(t SlotType) int {
	switch t {
	case SlotAdjective:
		return maxAdjectiveLen
	case SlotName:
		return maxNameLen
	case SlotVerb:
		return maxVerbLen
	case SlotPlace:
		return maxPlaceLen
	case SlotSound:
		return maxSoundLen
	case SlotNoun:
		return maxNounLen
	default:
		return 24
	}
}

// Slot is one typed placeholder in a template's ordered slot list.
type Slot struct {
	ID    string   `json:"id"`
	Type  SlotType `json:"type"`
	Label string   `json:"label"`
}

// Template is a static, keyed title/slots/story definition. The catalogue
// is out of scope for deep design (spec: "a static keyed map of
// title/slots/story text") but must exist for start/reveal/GET /templates.
type Template struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slots []Slot `json:"slots"`
	Story string `json:"story"`
}

// templateCatalogue is the in-process static store of templates.
var templateCatalogue = map[string]*Template{
	"t-forest-mishap": {
		ID:    "t-forest-mishap",
		Title: "Forest Mishap",
		Slots: []Slot{
			{ID: "adjective", Type: SlotAdjective, Label: "An adjective"},
			{ID: "name", Type: SlotName, Label: "A person's name"},
			{ID: "verb", Type: SlotVerb, Label: "An -ing verb"},
			{ID: "place", Type: SlotPlace, Label: "A place"},
			{ID: "sound", Type: SlotSound, Label: "A sound"},
			{ID: "noun", Type: SlotNoun, Label: "A plural noun"},
		},
		Story: "It was a {adjective} afternoon when {name} went {verb} through the {place}. " +
			"Suddenly, a loud {sound} echoed, and out came a stampede of {noun}.",
	},
	"t-office-disaster": {
		ID:    "t-office-disaster",
		Title: "Office Disaster",
		Slots: []Slot{
			{ID: "name", Type: SlotName, Label: "A coworker's name"},
			{ID: "adjective", Type: SlotAdjective, Label: "An adjective"},
			{ID: "noun", Type: SlotNoun, Label: "A plural noun"},
			{ID: "verb", Type: SlotVerb, Label: "An -ing verb"},
			{ID: "place", Type: SlotPlace, Label: "A place in an office"},
			{ID: "sound", Type: SlotSound, Label: "A sound"},
		},
		Story: "{name} walked into the meeting looking {adjective}, carrying a box of {noun}. " +
			"Everyone started {verb} toward the {place} when a {sound} rang out over the intercom.",
	},
	"t-space-voyage": {
		ID:    "t-space-voyage",
		Title: "Space Voyage",
		Slots: []Slot{
			{ID: "name", Type: SlotName, Label: "A captain's name"},
			{ID: "place", Type: SlotPlace, Label: "A planet"},
			{ID: "adjective", Type: SlotAdjective, Label: "An adjective"},
			{ID: "noun", Type: SlotNoun, Label: "A plural noun"},
			{ID: "sound", Type: SlotSound, Label: "A sound"},
			{ID: "verb", Type: SlotVerb, Label: "An -ing verb"},
		},
		Story: "Captain {name} steered the ship toward {place}, a {adjective} world covered in {noun}. " +
			"A {sound} shook the hull as the crew kept {verb} toward the escape pods.",
	},
}

// GetTemplate looks up a template by id.
func GetTemplate(id string) (*Template, bool) {
	t, ok := templateCatalogue[id]
	return t, ok
}

// ListTemplates returns every template in the catalogue, in a stable order.
func ListTemplates() []*Template {
	ids := make([]string, 0, len(templateCatalogue))
	for id := range templateCatalogue {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic order regardless of map iteration
	out := make([]*Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, templateCatalogue[id])
	}
	return out
}
