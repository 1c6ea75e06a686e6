package target

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePublicView(t *testing.T) {
	body := `{
		"email": "ada@example.com",
		"firstName": "Ada",
		"imageUrl": "/api/user/ada@example.com/pic",
		"links": [
			{"title": "one", "url": "https://one.example"},
			{"title": "two", "url": "https://two.example"},
			"garbage"
		]
	}`

	view, err := ParsePublicView([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", view.Email)
	assert.Equal(t, []Link{
		{Title: "one", URL: "https://one.example"},
		{Title: "two", URL: "https://two.example"},
	}, view.Links)
}

func TestParsePublicView_NoLinks(t *testing.T) {
	view, err := ParsePublicView([]byte(`{"email":"a@b.c"}`))
	require.NoError(t, err)
	assert.Empty(t, view.Links)

	view, err = ParsePublicView([]byte(`{"email":"a@b.c","links":null}`))
	require.NoError(t, err)
	assert.Empty(t, view.Links)
}

func TestParsePublicView_Invalid(t *testing.T) {
	_, err := ParsePublicView([]byte(`{"email":`))
	assert.Error(t, err)
}
