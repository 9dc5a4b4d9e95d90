package micropub

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFieldName(t *testing.T) {
	cases := []struct {
		key  string
		name string
		sub  string
	}{
		{"content", "content", ""},
		{"content[html]", "content", "html"},
		{"category[]", "category", ""},
		{"[html]", "[html]", ""},
		{"content[html", "content[html", ""},
		{"a[b][c]", "a[b][c]", ""},
		{"mp-syndicate-to[]", "mp-syndicate-to", ""},
	}

	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			name, sub := splitFieldName(c.key)
			assert.Equal(t, c.name, name)
			assert.Equal(t, c.sub, sub)
		})
	}
}

func TestFormBody(t *testing.T) {
	values := url.Values{
		"h":             {"entry"},
		"content[html]": {"<strong>Hi</strong>"},
		"category":      {"a"},
		"category[]":    {"b", "c"},
		"photo[alt]":    {"one", "two"},
	}

	assert.Equal(t, FormBody{
		"h":        {Values: []string{"entry"}},
		"content":  {Nested: map[string][]string{"html": {"<strong>Hi</strong>"}}},
		"category": {Values: []string{"a", "b", "c"}},
		"photo":    {Nested: map[string][]string{"alt": {"one", "two"}}},
	}, formBody(values))
}

func TestDecode_URLEncoded(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/micropub?ignored=query", strings.NewReader("h=entry&content=hello+world&access_token=abc123"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := Decode(req, defaultMaxMemory)
	require.NoError(t, err)

	assert.Equal(t, FormBody{
		"h":            {Values: []string{"entry"}},
		"content":      {Values: []string{"hello world"}},
		"access_token": {Values: []string{"abc123"}},
	}, body)
	assert.Equal(t, "abc123", body.AccessToken())
}

func TestDecode_Multipart(t *testing.T) {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	require.NoError(t, mw.WriteField("h", "entry"))
	require.NoError(t, mw.WriteField("content", "hello world"))
	fw, err := mw.CreateFormFile("photo", "photo.jpg")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("not really a jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/micropub", buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := Decode(req, defaultMaxMemory)
	require.NoError(t, err)

	assert.Equal(t, FormBody{
		"h":       {Values: []string{"entry"}},
		"content": {Values: []string{"hello world"}},
	}, body)
	assert.Equal(t, "", body.AccessToken())
}

func TestDecode_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/micropub", strings.NewReader(`{"type":["h-entry"],"access_token":"abc123"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	body, err := Decode(req, defaultMaxMemory)
	require.NoError(t, err)

	assert.Equal(t, JSONBody{
		"type":         []any{"h-entry"},
		"access_token": "abc123",
	}, body)
	assert.Equal(t, "abc123", body.AccessToken())
}

func TestDecode_JSONTrailingWhitespace(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/micropub", strings.NewReader("{\"type\":[\"h-entry\"]}\n \r\n"))
	req.Header.Set("Content-Type", "application/json")

	body, err := Decode(req, defaultMaxMemory)
	require.NoError(t, err)

	assert.Equal(t, JSONBody{"type": []any{"h-entry"}}, body)
}

func TestDecode_NoContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/micropub", nil)

	body, err := Decode(req, defaultMaxMemory)
	require.NoError(t, err)
	assert.Equal(t, FormBody{}, body)
}

func TestDecode_Failures(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		body        string
		message     string
	}{
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"type":`,
			message:     "Invalid JSON body.",
		},
		{
			name:        "trailing data after json",
			contentType: "application/json",
			body:        `{"type":["h-entry"],"properties":{"content":["x"]}} {not json`,
			message:     "Invalid JSON body.",
		},
		{
			name:        "second json value",
			contentType: "application/json",
			body:        `{"type":["h-entry"]} {"type":["h-entry"]}`,
			message:     "Invalid JSON body.",
		},
		{
			name:        "stray closing brace",
			contentType: "application/json",
			body:        `{"type":["h-entry"]}}`,
			message:     "Invalid JSON body.",
		},
		{
			name:        "json that is not an object",
			contentType: "application/json",
			body:        `["h-entry"]`,
			message:     "Invalid JSON body.",
		},
		{
			name:        "unsupported type",
			contentType: "text/plain",
			body:        "h=entry",
			message:     "Unsupported Content-Type: text/plain.",
		},
		{
			name:        "invalid content type",
			contentType: "application/json; =",
			body:        "{}",
			message:     "Invalid Content-Type header.",
		},
		{
			name:        "invalid form encoding",
			contentType: "application/x-www-form-urlencoded",
			body:        "h=%zz",
			message:     "Invalid form body.",
		},
		{
			name:        "multipart without boundary",
			contentType: "multipart/form-data",
			body:        "h=entry",
			message:     "Invalid multipart body.",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/micropub", strings.NewReader(c.body))
			req.Header.Set("Content-Type", c.contentType)

			_, err := Decode(req, defaultMaxMemory)

			var failure *Error
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, KindMalformedBody, failure.Kind)
			assert.Equal(t, http.StatusBadRequest, failure.Status)
			assert.Equal(t, c.message, failure.Message)
		})
	}
}

func TestDecode_BodyTooLarge(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/micropub", strings.NewReader(`{"type":["h-entry"],"properties":{"content":["`+strings.Repeat("x", 100)+`"]}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Body = http.MaxBytesReader(rr, req.Body, 20)

	_, err := Decode(req, defaultMaxMemory)

	var failure *Error
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "Request body too large.", failure.Message)
}
