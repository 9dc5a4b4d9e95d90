package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	out := &bytes.Buffer{}
	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestNormalize_Form(t *testing.T) {
	out, err := execute(t, "h=entry&content=hello+world&category[]=a&category[]=b&mp-slug=hi")
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": ["h-entry"],
		"properties": {"content": ["hello world"], "category": ["a", "b"]},
		"mp": {"slug": ["hi"]}
	}`, out)
}

func TestNormalize_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "body.json")
	err := os.WriteFile(path, []byte(`{"type":["h-entry"],"properties":{"content":[{"html":"<b>hi</b>"}]}}`), 0o600)
	require.NoError(t, err)

	out, err := execute(t, "", "--content-type", "application/json", path)
	require.NoError(t, err)

	assert.JSONEq(t, `{"type":["h-entry"],"properties":{"content":[{"html":"<b>hi</b>"}]}}`, out)
	assert.Contains(t, out, "<b>hi</b>")
}

func TestNormalize_ReportsClientError(t *testing.T) {
	_, err := execute(t, "content=hello")

	assert.EqualError(t, err, `400 Missing "h" value.`)
}

func TestNormalize_MissingFile(t *testing.T) {
	_, err := execute(t, "", filepath.Join(t.TempDir(), "missing"))

	assert.ErrorContains(t, err, "could not open request body")
}

func TestNormalize_Flags(t *testing.T) {
	cmd := newRootCmd()

	flag := cmd.Flags().Lookup("content-type")
	require.NotNil(t, flag)
	assert.Equal(t, "application/x-www-form-urlencoded", flag.DefValue)
	assert.Equal(t, "t", flag.Shorthand)
}
