package micropub

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

const accessTokenKey = "access_token"

// Body is the decoded request payload: either FormBody (URL encoded and
// multipart requests) or JSONBody.
type Body interface {
	// AccessToken returns the credential supplied in the body, if any.
	AccessToken() string
}

// FormBody maps form field names to their values. Bracketed field names are
// collapsed: "category[]" into the "category" values, and "content[html]"
// into the nested "html" value of "content".
type FormBody map[string]*FormValue

// FormValue holds the values submitted for one field name.
type FormValue struct {
	// Values are the plain values, in submission order.
	Values []string

	// Nested holds bracketed sub-keys, e.g. "html" for "content[html]".
	Nested map[string][]string
}

func (b FormBody) AccessToken() string {
	return b.first(accessTokenKey)
}

func (b FormBody) first(key string) string {
	v, ok := b[key]
	if !ok || len(v.Values) == 0 {
		return ""
	}
	return v.Values[0]
}

// JSONBody is a request body submitted as a JSON object.
type JSONBody map[string]any

func (b JSONBody) AccessToken() string {
	token, _ := b[accessTokenKey].(string)
	return token
}

// Decode reads the request body according to its declared content type. A
// request without a content type is treated as an empty form. The returned
// error, when not nil, is always an *Error.
func Decode(r *http.Request, maxMemory int64) (Body, error) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return FormBody{}, nil
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, malformed("Invalid Content-Type header.", err)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		err := r.ParseForm()
		if err != nil {
			return nil, bodyReadError("Invalid form body.", err)
		}
		return formBody(r.PostForm), nil

	case "multipart/form-data":
		err := r.ParseMultipartForm(maxMemory)
		if err != nil {
			return nil, bodyReadError("Invalid multipart body.", err)
		}

		for name := range r.MultipartForm.File {
			zerolog.Ctx(r.Context()).Debug().Str("field", name).Msg("ignoring multipart file field")
		}

		return formBody(url.Values(r.MultipartForm.Value)), nil

	case "application/json":
		return decodeJSON(r.Body)

	default:
		return nil, malformed("Unsupported Content-Type: "+mediaType+".", nil)
	}
}

func decodeJSON(r io.Reader) (Body, error) {
	body := JSONBody{}

	dec := json.NewDecoder(r)
	err := dec.Decode(&body)
	if err != nil {
		return nil, bodyReadError("Invalid JSON body.", err)
	}

	// the object must be the whole body
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after JSON object")
		}
		return nil, bodyReadError("Invalid JSON body.", err)
	}

	return body, nil
}

func bodyReadError(message string, err error) *Error {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return malformed("Request body too large.", err)
	}
	return malformed(message, err)
}

// formBody collects form fields, resolving the bracket conventions. Fields
// are visited in name order so that mixed forms of the same name ("a" and
// "a[]") collect deterministically.
func formBody(values url.Values) FormBody {
	body := FormBody{}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		name, sub := splitFieldName(key)

		v, ok := body[name]
		if !ok {
			v = &FormValue{}
			body[name] = v
		}

		if sub == "" {
			v.Values = append(v.Values, values[key]...)
			continue
		}

		if v.Nested == nil {
			v.Nested = map[string][]string{}
		}
		v.Nested[sub] = append(v.Nested[sub], values[key]...)
	}

	return body
}

// splitFieldName separates "name[sub]" into its parts. For "name[]" and plain
// names the sub-key is empty. Deeper nesting is not supported and such fields
// keep their full name.
func splitFieldName(key string) (name, sub string) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, ""
	}

	sub = key[open+1 : len(key)-1]
	if strings.ContainsAny(sub, "[]") {
		return key, ""
	}

	return key[:open], sub
}
