package store

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

// NLPTokenizerName and NLPAnalyzerName name the second Bleve analyzer
// registered alongside the code one: prose (docs, runbooks,
// conversations) needs whole-word tokens and English stop-word
// filtering, not camelCase/snake_case splitting, so it cannot share
// CodeAnalyzerName's mapping.
const (
	NLPTokenizerName = "nlp_tokenizer"
	NLPAnalyzerName  = "nlp_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(NLPTokenizerName, nlpTokenizerConstructor)
}

// createNLPIndexMapping builds a Bleve index mapping whose default
// analyzer is the NLP one, mirroring createIndexMapping's shape for
// the code analyzer.
func createNLPIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomAnalyzer(NLPAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": NLPTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, err
	}

	indexMapping.DefaultAnalyzer = NLPAnalyzerName
	return indexMapping, nil
}

// nlpTokenizerConstructor creates the NLP tokenizer for Bleve.
func nlpTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveNLPTokenizer{}, nil
}

// bleveNLPTokenizer implements analysis.Tokenizer using TokenizeNLP,
// the whole-word/stop-word-filtered tokenizer (as opposed to
// bleveCodeTokenizer's identifier-splitting one).
type bleveNLPTokenizer struct{}

func (t *bleveNLPTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeNLP(text)

	result := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, token := range tokens {
		start := indexCaseInsensitive(text, token, offset)
		if start == -1 {
			start = offset
		}
		end := start + len(token)
		result = append(result, &analysis.Token{
			Term:     []byte(token),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return result
}

func indexCaseInsensitive(text, token string, from int) int {
	if from > len(text) {
		return -1
	}
	idx := indexFold(text[from:], token)
	if idx == -1 {
		return -1
	}
	return idx + from
}

func indexFold(haystack, needle string) int {
	lh, ln := toLower(haystack), toLower(needle)
	for i := 0; i+len(ln) <= len(lh); i++ {
		if lh[i:i+len(ln)] == ln {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
