package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"Go (programming language)":     "Go (programming language)",
		"  Go   (programming language) ": "Go (programming language)",
		"Go_(programming_language)":     "Go (programming language)",
		"line\tbreak\nhere":             "line break here",
		"":                              "",
		"   ":                           "",
		// decomposed é becomes the composed form
		"Cafe\u0301": "Caf\u00e9",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeTitle(in), "input %q", in)
	}
}

func TestTitleKey_CaseAndWhitespaceInsensitive(t *testing.T) {
	k := TitleKey("Alan Turing")
	assert.Equal(t, k, TitleKey("alan turing"))
	assert.Equal(t, k, TitleKey("  ALAN_TURING "))
	assert.NotEqual(t, k, TitleKey("Alan Turing Award"))
}

func TestNewArticle_SetsBothTimestamps(t *testing.T) {
	now := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	a := NewArticle(" Alan_Turing ", "# body", now)

	assert.Equal(t, "Alan Turing", a.Title)
	assert.Equal(t, TitleKey("alan turing"), a.TitleKey)
	assert.Equal(t, now, a.CreatedAt)
	assert.Equal(t, now, a.ModifiedAt)
	assert.Equal(t, ArticleSummary{Title: "Alan Turing", ModifiedAt: now}, a.Summary())
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(string(a))
		assert.NoError(t, err)
		assert.Equal(t, a, got)
		assert.True(t, a.Valid())
	}

	_, err := ParseAction("create")
	assert.Error(t, err)
	assert.False(t, Action("check").Valid())
}
