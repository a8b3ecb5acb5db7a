package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/strataforge/knowgraph/internal/types"
)

// ThreadChunker implements both conversational variants: Slack exports
// (grouped by thread_ts, split only at message boundaries) and
// plain-text transcripts (grouped by speaker turn). Which parser runs
// is chosen by source shape, not by source_type, so a single
// ThreadChunker instance serves both.
type ThreadChunker struct{}

// NewThreadChunker builds a ThreadChunker.
func NewThreadChunker() *ThreadChunker {
	return &ThreadChunker{}
}

// slackMessage mirrors the Slack export wire shape: ts is a
// numeric Unix-seconds string with microseconds.
type slackMessage struct {
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	User     string `json:"user"`
	Text     string `json:"text"`
}

type slackExport struct {
	Channels map[string][]slackMessage `json:"channels"`
}

// Chunk dispatches to the Slack JSON parser when source looks like JSON
// (a `[` or `{` as the first non-whitespace byte), else to the
// line-oriented transcript parser.
func (c *ThreadChunker) Chunk(_ context.Context, sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	trimmed := strings.TrimSpace(string(source))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		return c.chunkSlack(sourceURI, source, st, meta)
	}
	return c.chunkTranscript(sourceURI, source, st, meta), nil
}

// chunkSlack groups messages by thread_ts (falling back to each
// message's own ts when absent), sorts each thread ascending by ts, and
// splits a thread into multiple chunks only at message boundaries when
// it exceeds the token budget.
func (c *ThreadChunker) chunkSlack(sourceURI string, source []byte, st types.SourceType, meta types.Metadata) ([]*types.RawChunk, error) {
	messages, channel, err := parseSlackExport(source, meta.Channel)
	if err != nil {
		return nil, fmt.Errorf("parsing slack export %s: %w", sourceURI, err)
	}

	threads := map[string][]slackMessage{}
	var threadOrder []string
	for _, m := range messages {
		key := m.ThreadTS
		if key == "" {
			key = m.TS
		}
		if _, ok := threads[key]; !ok {
			threadOrder = append(threadOrder, key)
		}
		threads[key] = append(threads[key], m)
	}

	var out []*types.RawChunk
	cursor := 0
	for _, key := range threadOrder {
		msgs := threads[key]
		sort.Slice(msgs, func(i, j int) bool {
			return slackTSFloat(msgs[i].TS) < slackTSFloat(msgs[j].TS)
		})

		groups := groupMessagesByBudget(msgs)
		for _, group := range groups {
			text := renderSlackGroup(group)
			start := cursor
			end := start + len(text)
			cursor = end + 1

			m := meta.Clone()
			m.Channel = channel
			m.ThreadID = key
			first := group[0]
			m.Author = first.User
			if ts, ok := slackTSToTime(first.TS); ok {
				m.Timestamp = &ts
			}
			speakers := uniqueSlackUsers(group)
			m.CalledBy = nil
			m.Imports = nil
			prefix := fmt.Sprintf("#%s > thread %s", channel, key)

			out = append(out, &types.RawChunk{
				ID:            types.ChunkID(sourceURI, start, end),
				SourceURI:     sourceURI,
				ByteRange:     types.ByteRange{Start: start, End: end},
				SourceType:    st,
				Text:          text,
				ContextPrefix: prefix,
				Metadata:      withSpeakers(m, speakers),
			})
		}
	}
	return out, nil
}

// withSpeakers stashes the distinct speakers in a chunk via Author
// (first speaker) plus a comma-joined Signature field, since the open
// metadata bag has no dedicated "speakers" slot.
func withSpeakers(m types.Metadata, speakers []string) types.Metadata {
	m.Signature = strings.Join(speakers, ", ")
	return m
}

func uniqueSlackUsers(group []slackMessage) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range group {
		if m.User == "" {
			continue
		}
		if _, ok := seen[m.User]; ok {
			continue
		}
		seen[m.User] = struct{}{}
		out = append(out, m.User)
	}
	return out
}

// groupMessagesByBudget packs ascending messages into groups at or
// under MaxChunkTokens, splitting only between messages, never inside
// one.
func groupMessagesByBudget(msgs []slackMessage) [][]slackMessage {
	if len(msgs) == 0 {
		return nil
	}
	var groups [][]slackMessage
	var current []slackMessage
	size := 0
	for _, m := range msgs {
		line := renderSlackLine(m)
		lineTokens := EstimateTokens(line)
		if len(current) > 0 && size+lineTokens > MaxChunkTokens {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, m)
		size += lineTokens
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func renderSlackGroup(group []slackMessage) string {
	lines := make([]string, 0, len(group))
	for _, m := range group {
		lines = append(lines, renderSlackLine(m))
	}
	return strings.Join(lines, "\n")
}

func renderSlackLine(m slackMessage) string {
	ts := m.TS
	if t, ok := slackTSToTime(m.TS); ok {
		ts = t.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s] @%s: %s", ts, m.User, m.Text)
}

func slackTSFloat(ts string) float64 {
	f, _ := strconv.ParseFloat(ts, 64)
	return f
}

func slackTSToTime(ts string) (time.Time, bool) {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, false
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), true
}

// parseSlackExport accepts either export shape: a flat
// JSON array of messages for one channel, or a top-level object keyed
// by channels.
func parseSlackExport(source []byte, fallbackChannel string) ([]slackMessage, string, error) {
	trimmed := strings.TrimSpace(string(source))
	if strings.HasPrefix(trimmed, "[") {
		var msgs []slackMessage
		if err := json.Unmarshal(source, &msgs); err != nil {
			return nil, "", err
		}
		return msgs, fallbackChannel, nil
	}

	var export slackExport
	if err := json.Unmarshal(source, &export); err != nil {
		return nil, "", err
	}
	var all []slackMessage
	channel := fallbackChannel
	for name, msgs := range export.Channels {
		channel = name
		all = append(all, msgs...)
		break // a single-file export carries exactly one channel in practice
	}
	return all, channel, nil
}

// transcriptTurnPattern recognizes "[H]H:MM(:SS)? <speaker>: <text>"
// with an optional leading timestamp.
var transcriptTurnPattern = regexp.MustCompile(`^\s*(?:\[?(\d{1,2}:\d{2}(?::\d{2})?)\]?\s+)?([^:]{1,80}):\s*(.*)$`)

type transcriptTurn struct {
	speaker string
	lines   []string
}

// chunkTranscript parses a line-based transcript, grouping continuation
// lines onto the current speaker, then packs turns greedily up to
// ~SlidingWindowTarget tokens, splitting only at speaker-turn
// boundaries.
func (c *ThreadChunker) chunkTranscript(sourceURI string, source []byte, st types.SourceType, meta types.Metadata) []*types.RawChunk {
	lines := strings.Split(string(source), "\n")

	var turns []transcriptTurn
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := transcriptTurnPattern.FindStringSubmatch(line); m != nil && m[2] != "" {
			turns = append(turns, transcriptTurn{speaker: strings.TrimSpace(m[2]), lines: []string{m[3]}})
			continue
		}
		if len(turns) == 0 {
			turns = append(turns, transcriptTurn{speaker: "", lines: []string{line}})
			continue
		}
		last := &turns[len(turns)-1]
		last.lines = append(last.lines, line)
	}

	var groups [][]transcriptTurn
	var current []transcriptTurn
	size := 0
	for _, t := range turns {
		text := renderTurn(t)
		tokens := EstimateTokens(text)
		if len(current) > 0 && size+tokens > SlidingWindowTarget {
			groups = append(groups, current)
			current = nil
			size = 0
		}
		current = append(current, t)
		size += tokens
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	var out []*types.RawChunk
	cursor := 0
	for _, group := range groups {
		var parts []string
		for _, t := range group {
			parts = append(parts, renderTurn(t))
		}
		text := strings.Join(parts, "\n")
		start := cursor
		end := start + len(text)
		cursor = end + 1

		m := meta.Clone()
		if len(group) > 0 {
			m.Author = group[0].speaker
		}
		out = append(out, &types.RawChunk{
			ID:         types.ChunkID(sourceURI, start, end),
			SourceURI:  sourceURI,
			ByteRange:  types.ByteRange{Start: start, End: end},
			SourceType: st,
			Text:       text,
			Metadata:   m,
		})
	}
	return out
}

func renderTurn(t transcriptTurn) string {
	body := strings.Join(t.lines, "\n")
	if t.speaker == "" {
		return body
	}
	return fmt.Sprintf("%s: %s", t.speaker, body)
}
