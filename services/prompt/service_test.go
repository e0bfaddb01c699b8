package prompt

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	got := Compose("What is the capital of France?", "Paris is the capital of France.")
	assert.Equal(t, "Context: Paris is the capital of France.\nQuestion: What is the capital of France?", got)
}

func TestCompose_TruncatesContextAtExactly1000Chars(t *testing.T) {
	context := strings.Repeat("a", 1500)

	got := Compose("question", context)

	want := "Context: " + strings.Repeat("a", 1000) + "\nQuestion: question"
	assert.Equal(t, want, got)
	assert.NotContains(t, got, strings.Repeat("a", 1001))
}

func TestCompose_TruncationCountsCharactersNotBytes(t *testing.T) {
	// Two bytes per character: a byte-based cut would keep only 500 of them.
	context := strings.Repeat("é", 1500)

	got := Compose("question", context)

	want := "Context: " + strings.Repeat("é", 1000) + "\nQuestion: question"
	assert.Equal(t, want, got)
	assert.True(t, utf8.ValidString(got))
}

func TestCompose_ShortContextUntouched(t *testing.T) {
	got := Compose("q", "short context")
	assert.Equal(t, "Context: short context\nQuestion: q", got)
}

func TestComposeMessages(t *testing.T) {
	t.Run("all roles", func(t *testing.T) {
		msgs := ComposeMessages("question", "ctx", "be helpful", "prior answer")

		require.Len(t, msgs, 3)
		assert.Equal(t, "system", msgs[0].Role)
		assert.Equal(t, "be helpful", msgs[0].Content)
		assert.Equal(t, "user", msgs[1].Role)
		assert.Equal(t, "Context: ctx\nQuestion: question", msgs[1].Content)
		assert.Equal(t, "assistant", msgs[2].Role)
		assert.Equal(t, "prior answer", msgs[2].Content)
	})

	t.Run("user only", func(t *testing.T) {
		msgs := ComposeMessages("question", "ctx", "", "")

		require.Len(t, msgs, 1)
		assert.Equal(t, "user", msgs[0].Role)
	})

	t.Run("system without assistant", func(t *testing.T) {
		msgs := ComposeMessages("question", "ctx", "be helpful", "")

		require.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].Role)
		assert.Equal(t, "user", msgs[1].Role)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc"))
	assert.Len(t, Truncate(strings.Repeat("x", 2000)), MaxContextChars)
	assert.Equal(t, "", Truncate(""))

	wide := Truncate(strings.Repeat("日", 1200))
	assert.Equal(t, MaxContextChars, utf8.RuneCountInString(wide))
	assert.True(t, utf8.ValidString(wide))
}
