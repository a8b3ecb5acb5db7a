package scrub

import "regexp"

// SecretType classifies a detected secret literal.
type SecretType string

const (
	SecretAWSAccessKey  SecretType = "AWS_ACCESS_KEY"
	SecretAWSSecretKey  SecretType = "AWS_SECRET_KEY"
	SecretGitHubToken   SecretType = "GITHUB_TOKEN"
	SecretSlackToken    SecretType = "SLACK_TOKEN"
	SecretPrivateKey    SecretType = "PRIVATE_KEY"
	SecretGenericAPIKey SecretType = "GENERIC_API_KEY"
	SecretJWT           SecretType = "JWT"
)

// secretPattern pairs a detection regex with the SecretType it signals,
// in the style of trufflehog's pattern catalog: each entry is a
// self-contained literal-shape matcher, not a generic entropy scan.
type secretPattern struct {
	Type    SecretType
	Pattern *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{SecretAWSAccessKey, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{SecretAWSSecretKey, regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?([A-Za-z0-9/+=]{40})['"]?`)},
	{SecretGitHubToken, regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36}\b`)},
	{SecretSlackToken, regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,72}\b`)},
	{SecretPrivateKey, regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH )?PRIVATE KEY-----`)},
	{SecretJWT, regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`)},
	{SecretGenericAPIKey, regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|secret|token)\s*[:=]\s*['"]([A-Za-z0-9_\-]{20,})['"]`)},
}

// SecretMatch is one detected secret literal with its byte range within
// the scanned text.
type SecretMatch struct {
	Start   int
	End     int
	Type    SecretType
	Literal string
}

// SecretDetector scans text for hard-coded credentials.
type SecretDetector struct{}

// NewSecretDetector builds a SecretDetector.
func NewSecretDetector() *SecretDetector {
	return &SecretDetector{}
}

// Detect returns every secret match in text, grouped by pattern in
// catalog order and left to right within each pattern. A
// pattern with a capture group reports the group's span as the match
// (so surrounding quotes/key names are not redacted); one without
// reports the whole match.
func (d *SecretDetector) Detect(text string) []SecretMatch {
	var out []SecretMatch
	for _, p := range secretPatterns {
		for _, loc := range p.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if len(loc) >= 4 && loc[2] >= 0 {
				start, end = loc[2], loc[3]
			}
			out = append(out, SecretMatch{Start: start, End: end, Type: p.Type, Literal: text[start:end]})
		}
	}
	return out
}
