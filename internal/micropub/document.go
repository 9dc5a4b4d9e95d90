package micropub

// Document is the canonical microformats2 representation of a create
// request. It is the same whichever encoding the client used.
//
// Every property value is a sequence, even when a single value was
// submitted. Values are strings, or objects for structured values such as
// HTML content ({"html": "..."}).
type Document struct {
	Type       []string         `json:"type"`
	Properties map[string][]any `json:"properties"`

	// MP holds the "mp-" prefixed server commands, keyed without the prefix.
	// It is nil when the request supplied no commands.
	MP map[string][]string `json:"mp,omitempty"`
}

// Command returns the first value of the named server command.
func (d Document) Command(name string) (string, bool) {
	values := d.MP[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (d Document) postType() string {
	if len(d.Type) == 0 {
		return ""
	}
	return d.Type[0]
}
