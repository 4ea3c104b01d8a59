package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONPlain(t *testing.T) {
	got, err := ParseJSON[payload](`{"name": "acme", "count": 3}`)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "acme", Count: 3}, got)
}

func TestParseJSONIgnoresSurroundingProse(t *testing.T) {
	response := "Sure, here you go:\n```json\n{\"name\": \"acme\", \"count\": 1}\n```\nAnything else?"
	got, err := ParseJSON[payload](response)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[payload]("no structured data here")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[payload](`{"name": }`)
	assert.Error(t, err)
}
