// Package logging provides opt-in file-based logging with rotation for
// KnowGraph. With the --debug flag, full structured logs are written to
// ~/.knowgraph/logs/ for troubleshooting; without it, logging stays
// minimal and goes to stderr only.
package logging
