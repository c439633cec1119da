package smalltalk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleGreetings(t *testing.T) {
	cases := []struct {
		name  string
		query string
		lang  Language
		want  string
	}{
		{name: "hindi greeting", query: "Namaste", lang: Hindi, want: greetingHindi},
		{name: "english greeting", query: "  HELLO there ", lang: English, want: greetingEnglish},
		{name: "devanagari token", query: "नमस्कार जी", lang: English, want: greetingEnglish},
		{name: "prefix only", query: "hey", lang: Hindi, want: greetingHindi},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply, ok := Handle(tc.query, tc.lang)
			require.True(t, ok)
			require.Equal(t, tc.want, reply)
		})
	}
}

func TestHandleFarewellsMatchAnywhere(t *testing.T) {
	reply, ok := Handle("ok thanks a lot", English)
	require.True(t, ok)
	require.Equal(t, farewellEnglish, reply)

	reply, ok = Handle("बहुत धन्यवाद", Hindi)
	require.True(t, ok)
	require.Equal(t, farewellHindi, reply)
}

func TestHandleGreetingWinsOverFarewell(t *testing.T) {
	reply, ok := Handle("hello and goodbye", English)
	require.True(t, ok)
	require.Equal(t, greetingEnglish, reply)
}

func TestHandleLoosePrefixMatch(t *testing.T) {
	reply, ok := Handle("history of wheat", English)
	require.True(t, ok)
	require.Equal(t, greetingEnglish, reply)
}

func TestHandleNonShortcut(t *testing.T) {
	for _, q := range []string{"", "   ", "What is PM-KISAN?", "say hello"} {
		reply, ok := Handle(q, English)
		require.False(t, ok, q)
		require.Empty(t, reply)
	}
}

func TestHandleUnknownLanguageFallsBackToEnglish(t *testing.T) {
	reply, ok := Handle("bye", Language("fr"))
	require.True(t, ok)
	require.False(t, strings.Contains(reply, "धन्यवाद"))
}

func TestParseLanguage(t *testing.T) {
	require.Equal(t, Hindi, ParseLanguage(" HI "))
	require.Equal(t, Hindi, ParseLanguage("hindi"))
	require.Equal(t, English, ParseLanguage("en"))
	require.Equal(t, English, ParseLanguage(""))
}
