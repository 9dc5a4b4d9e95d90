package indieauth

import (
	"encoding/json"
	"errors"
	"mime"
	"net/url"
	"slices"
	"strings"
)

// tokenResponse is the verification response of a token endpoint.
//
// See: https://indieauth.spec.indieweb.org/#access-token-verification-response
type tokenResponse struct {
	Me               string    `json:"me"`
	Scope            scopeList `json:"scope"`
	ClientID         string    `json:"client_id"`
	IssuedBy         string    `json:"issued_by"`
	Error            string    `json:"error"`
	ErrorDescription string    `json:"error_description"`
}

// scopeList accepts a space or comma delimited string, or (in JSON) an array
// of strings.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*s = splitScopes(raw)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("scope must be a string or an array of strings")
	}

	*s = nil
	for _, item := range list {
		*s = append(*s, splitScopes(item)...)
	}

	return nil
}

func (s scopeList) Contains(scope string) bool {
	return slices.Contains(s, scope)
}

func splitScopes(scopes string) scopeList {
	split := strings.FieldsFunc(scopes, func(r rune) bool {
		return r == ' ' || r == ','
	})
	if len(split) == 0 {
		return nil
	}
	return split
}

// parseTokenResponse decodes the body according to the content type the
// endpoint declared. URL encoding is assumed when the type is absent or
// unrecognized.
func parseTokenResponse(contentType string, body []byte) (tokenResponse, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		res := tokenResponse{}
		err := json.Unmarshal(body, &res)
		return res, err
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return tokenResponse{}, err
	}

	return tokenResponse{
		Me:               values.Get("me"),
		Scope:            splitScopes(values.Get("scope")),
		ClientID:         values.Get("client_id"),
		IssuedBy:         values.Get("issued_by"),
		Error:            values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}, nil
}
