package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Locator
	}{
		{"prefixed xpath", "xpath=html/body/div[2]/form/button", Locator{Strategy: XPath, Query: "html/body/div[2]/form/button"}},
		{"bare absolute xpath", "//button[@type='submit']", Locator{Strategy: XPath, Query: "//button[@type='submit']"}},
		{"parenthesised xpath", "(//input)[2]", Locator{Strategy: XPath, Query: "(//input)[2]"}},
		{"prefixed css", "css=#email", Locator{Strategy: CSS, Query: "#email"}},
		{"bare css", "button[type=\"submit\"]", Locator{Strategy: CSS, Query: "button[type=\"submit\"]"}},
		{"text substring", "text=Message sent successfully!", Locator{Strategy: Text, Query: "Message sent successfully!"}},
		{"bare quoted text", `"Gönder"`, Locator{Strategy: Text, Query: `"Gönder"`}},
		{"nth suffix", "xpath=//input >> nth=2", Locator{Strategy: XPath, Query: "//input", Nth: 2}},
		{"surrounding whitespace", "  css=.btn  ", Locator{Strategy: CSS, Query: ".btn"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{
		"",
		"   ",
		"xpath=",
		"css=",
		"text=",
		"xpath=//a >> nth=-1",
		"xpath=//a >> nth=first",
		"text=/unterminated",
		"text=/abc/x",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.Error(t, err)
		})
	}
}

func TestLocator_StringRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"xpath=html/body/div[5]/button",
		"css=form > input",
		"text=/giriş yapılamadı|geçersiz/i",
		"xpath=//li >> nth=3",
	} {
		loc := MustParse(raw)
		again, err := Parse(loc.String())
		require.NoError(t, err)
		assert.Equal(t, loc, again)
	}

	assert.Equal(t, "xpath=//li >> nth=3", MustParse("//li >> nth=3").String())
	assert.Equal(t, "css=#id", MustParse("#id").String())
}

func TestParseTextMatcher(t *testing.T) {
	m, err := ParseTextMatcher("Hoş geldiniz")
	require.NoError(t, err)
	assert.Equal(t, TextMatcher{Mode: TextSubstring, Pattern: "Hoş geldiniz"}, m)

	m, err = ParseTextMatcher(`"Message sent successfully!"`)
	require.NoError(t, err)
	assert.Equal(t, TextMatcher{Mode: TextExact, Pattern: "Message sent successfully!"}, m)

	m, err = ParseTextMatcher("/Giriş yapılamadı|Geçersiz kullanıcı bilgileri/i")
	require.NoError(t, err)
	assert.Equal(t, TextMatcher{Mode: TextRegex, Pattern: "Giriş yapılamadı|Geçersiz kullanıcı bilgileri", Flags: "i"}, m)

	_, err = ParseTextMatcher("//")
	assert.Error(t, err)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("") })
}

func TestForText(t *testing.T) {
	loc := ForText("Saved")
	assert.Equal(t, Text, loc.Strategy)
	assert.False(t, loc.IsZero())
	assert.True(t, Locator{}.IsZero())
}
