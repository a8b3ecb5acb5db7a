package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCodeSplitsIdentifiers(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "user", "by", "id"}},
		{"get_payment_status", []string{"get", "payment", "status"}},
		{"HTTPHandler", []string{"http", "handler"}},
		{"parseHTTPRequest", []string{"parse", "http", "request"}},
		{"requests.get(url)", []string{"requests", "get", "url"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TokenizeCode(tc.input), "input %q", tc.input)
	}
}

func TestTokenizeCodeDropsShortTokens(t *testing.T) {
	tokens := TokenizeCode("a b xy i j k99")
	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "b")
	assert.Contains(t, tokens, "xy")
	assert.Contains(t, tokens, "k99")
}

func TestSplitCamelCase(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"", []string{}},
		{"simple", []string{"simple"}},
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"ALLCAPS", []string{"ALLCAPS"}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SplitCamelCase(tc.input), "input %q", tc.input)
	}
}

func TestSplitCodeTokenHandlesMixedStyles(t *testing.T) {
	assert.Equal(t, []string{"get", "User", "payment", "Status"}, SplitCodeToken("getUser_paymentStatus"))
}

func TestTokenizeNLPKeepsWholeWords(t *testing.T) {
	tokens := TokenizeNLP("The getUserById handler restarts when Kubernetes evicts it")

	// Identifiers are not split by the NLP tokenizer.
	assert.Contains(t, tokens, "getuserbyid")
	assert.NotContains(t, tokens, "get")

	// Stop words are gone, content words remain.
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "it")
	assert.Contains(t, tokens, "handler")
	assert.Contains(t, tokens, "kubernetes")
}

func TestFilterStopWords(t *testing.T) {
	stop := BuildStopWordMap([]string{"func", "return"})
	got := FilterStopWords([]string{"func", "Resolve", "return", "edge"}, stop)
	assert.Equal(t, []string{"Resolve", "edge"}, got)
}

func TestBuildStopWordMapIsCaseFolded(t *testing.T) {
	m := BuildStopWordMap([]string{"Func", "VOID"})
	_, ok := m["func"]
	assert.True(t, ok)
	_, ok = m["void"]
	assert.True(t, ok)
}
