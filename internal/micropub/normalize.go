package micropub

import (
	"fmt"
	"strings"
)

const (
	commandPrefix = "mp-"
	typePrefix    = "h-"

	hKey      = "h"
	actionKey = "action"
)

// reservedFormKeys are form fields that are never properties.
var reservedFormKeys = map[string]bool{
	hKey:           true,
	accessTokenKey: true,
	actionKey:      true,
}

// Normalize converts a decoded body into the canonical document. The
// returned error, when not nil, is always an *Error.
func Normalize(body Body) (Document, error) {
	switch b := body.(type) {
	case FormBody:
		return normalizeForm(b)
	case JSONBody:
		return normalizeJSON(b)
	default:
		return Document{}, malformed("Invalid request body.", fmt.Errorf("unexpected body type %T", body))
	}
}

func normalizeForm(body FormBody) (Document, error) {
	doc := Document{
		Properties: map[string][]any{},
	}

	for key, value := range body {
		if name, ok := strings.CutPrefix(key, commandPrefix); ok {
			doc.addCommand(name, value.Values...)
		}
	}

	if updateRequested(doc, body.first(actionKey)) {
		return Document{}, newError(KindUnsupportedAction, nil)
	}

	h := strings.TrimSpace(body.first(hKey))
	if h == "" {
		return Document{}, newError(KindMissingHField, nil)
	}
	doc.Type = []string{typePrefix + h}

	for key, value := range body {
		if reservedFormKeys[key] || strings.HasPrefix(key, commandPrefix) {
			continue
		}

		values := make([]any, 0, len(value.Values)+1)
		for _, v := range value.Values {
			values = append(values, v)
		}
		if len(value.Nested) > 0 {
			values = append(values, nestedObject(value.Nested))
		}

		doc.Properties[key] = values
	}

	if len(doc.Properties) == 0 && len(doc.MP) == 0 {
		return Document{}, newError(KindNoProperties, nil)
	}

	return doc, nil
}

// nestedObject builds the structured value for bracketed form fields. A
// sub-key submitted once has a plain string value.
func nestedObject(nested map[string][]string) map[string]any {
	obj := make(map[string]any, len(nested))
	for k, vs := range nested {
		if len(vs) == 1 {
			obj[k] = vs[0]
			continue
		}

		list := make([]any, 0, len(vs))
		for _, v := range vs {
			list = append(list, v)
		}
		obj[k] = list
	}
	return obj
}

func normalizeJSON(body JSONBody) (Document, error) {
	doc := Document{
		Properties: map[string][]any{},
	}

	for key, value := range body {
		if name, ok := strings.CutPrefix(key, commandPrefix); ok {
			err := doc.addJSONCommand(key, name, value)
			if err != nil {
				return Document{}, err
			}
		}
	}

	// an already canonical document carries its commands in "mp"
	if rawMP, ok := body["mp"]; ok {
		commands, ok := rawMP.(map[string]any)
		if !ok {
			return Document{}, malformed(`Invalid "mp" value: expected an object.`, nil)
		}
		for name, value := range commands {
			err := doc.addJSONCommand(commandPrefix+name, name, value)
			if err != nil {
				return Document{}, err
			}
		}
	}

	rawProperties, hasProperties := body["properties"]
	properties, ok := rawProperties.(map[string]any)
	if hasProperties && !ok {
		return Document{}, malformed(`Invalid "properties" value: expected an object.`, nil)
	}

	for key, value := range properties {
		if name, ok := strings.CutPrefix(key, commandPrefix); ok {
			err := doc.addJSONCommand(key, name, value)
			if err != nil {
				return Document{}, err
			}
			continue
		}

		if list, ok := value.([]any); ok {
			doc.Properties[key] = list
		} else {
			doc.Properties[key] = []any{value}
		}
	}

	action, _ := body[actionKey].(string)
	if updateRequested(doc, action) {
		return Document{}, newError(KindUnsupportedAction, nil)
	}

	types, err := jsonTypes(body["type"])
	if err != nil {
		return Document{}, err
	}
	doc.Type = types

	if len(doc.Properties) == 0 && len(doc.MP) == 0 {
		return Document{}, newError(KindNoProperties, nil)
	}

	return doc, nil
}

func jsonTypes(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, malformed(`Invalid "type" value: expected a non-empty array.`, nil)
	}

	types := make([]string, 0, len(list))
	for _, t := range list {
		s, ok := t.(string)
		if !ok || s == "" {
			return nil, malformed(`Invalid "type" value: expected an array of strings.`, nil)
		}
		types = append(types, s)
	}

	return types, nil
}

// addCommand records a server command. Commands without a name or without
// values are dropped, so every command in the document has a value.
func (d *Document) addCommand(name string, values ...string) {
	if name == "" || len(values) == 0 {
		return
	}
	if d.MP == nil {
		d.MP = map[string][]string{}
	}
	d.MP[name] = append(d.MP[name], values...)
}

// addJSONCommand accepts a string or an array of strings as the command's
// value.
func (d *Document) addJSONCommand(key, name string, value any) error {
	switch v := value.(type) {
	case string:
		d.addCommand(name, v)
		return nil

	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return malformed(fmt.Sprintf("Invalid %q value: expected strings.", key), nil)
			}
			values = append(values, s)
		}
		d.addCommand(name, values...)
		return nil

	default:
		return malformed(fmt.Sprintf("Invalid %q value: expected strings.", key), nil)
	}
}

// updateRequested reports whether the request asks for something other than
// creating a post, via either the "action" field or the "mp-action" command.
func updateRequested(doc Document, action string) bool {
	if action != "" && action != "create" {
		return true
	}

	command, ok := doc.Command(actionKey)
	return ok && command != "create"
}
