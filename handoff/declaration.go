// Package handoff implements the inter-specialist handoff declaration
// protocol: a line-oriented micro-format embedded in free-form specialist
// output. The wire format is a stable contract:
//
//	HANDOFF DECLARATION:
//	To: <specialist_id>
//	Reason: <free text, single line>
//	Context:
//	  - <key label>: <value>
//	  - <key label>: <value>
//
// ExtractHandoff distinguishes three outcomes: no declaration present
// (nil, nil), a well-formed declaration (handoff, nil), and a malformed
// declaration (nil, HANDOFF_PARSE error). The distinction matters for
// control flow: absence means task completion, malformation means a
// specialist authoring bug that must surface.
package handoff

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/swarmroute/swarmroute/types"
)

// Marker is the case-sensitive literal opening the declaration block.
const Marker = "HANDOFF DECLARATION:"

const (
	toPrefix     = "To:"
	reasonPrefix = "Reason:"
	contextLine  = "Context:"
	bulletPrefix = "- "
)

// ExtractHandoff scans text for a handoff declaration block.
//
// Returns (nil, nil) when no Marker line is present anywhere in the text.
// Returns a HANDOFF_PARSE error when the marker is present but the block
// is malformed (missing or empty To: line). ToSpecialist is trimmed but
// not validated against the directory.
func ExtractHandoff(text string) (*types.Handoff, error) {
	lines := strings.Split(text, "\n")

	start := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == Marker {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, nil
	}

	h := &types.Handoff{}
	context := make(map[string]any)
	inContext := false

	for i := start + 1; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			// A blank line ends the block unless the following content is
			// still indented (continuation of the context list).
			j := i + 1
			for j < len(lines) && strings.TrimSpace(lines[j]) == "" {
				j++
			}
			if j >= len(lines) || !isIndented(lines[j]) {
				break
			}
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, toPrefix):
			h.ToSpecialist = strings.TrimSpace(trimmed[len(toPrefix):])
			inContext = false
		case strings.HasPrefix(trimmed, reasonPrefix):
			h.Reason = strings.TrimSpace(trimmed[len(reasonPrefix):])
			inContext = false
		case trimmed == contextLine:
			inContext = true
		case inContext && isIndented(line) && strings.HasPrefix(trimmed, bulletPrefix):
			key, value := parseBullet(trimmed)
			if key != "" {
				context[key] = value
			}
		default:
			if !isIndented(line) {
				// Unrelated non-indented content ends the block.
				i = len(lines)
			}
		}
	}

	if h.ToSpecialist == "" {
		return nil, types.NewError(types.ErrHandoffParse,
			"handoff declaration missing To: line")
	}

	if len(context) > 0 {
		h.Context = context
	}
	h.EmittedAt = time.Now().UTC()
	return h, nil
}

// parseBullet splits "- Label: Value" into a normalized key and a value.
// Values that are syntactically JSON objects or arrays are parsed as
// structured data; anything else is kept as a string.
func parseBullet(trimmed string) (string, any) {
	body := trimmed[len(bulletPrefix):]
	idx := strings.Index(body, ":")
	if idx < 0 {
		return "", nil
	}
	key := normalizeKey(body[:idx])
	raw := strings.TrimSpace(body[idx+1:])

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		var structured any
		if err := json.Unmarshal([]byte(raw), &structured); err == nil {
			return key, structured
		}
	}
	return key, raw
}

// normalizeKey lowercases a context label and joins spaces with underscores.
func normalizeKey(label string) string {
	label = strings.TrimSpace(strings.ToLower(label))
	return strings.Join(strings.Fields(label), "_")
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// Render produces the wire-format declaration for a handoff such that
// ExtractHandoff(Render(h)) yields an equal handoff (up to EmittedAt and
// key normalization). Context keys are emitted in sorted order; structured
// values are emitted as compact JSON.
func Render(h *types.Handoff) string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString("\n")
	b.WriteString(toPrefix)
	b.WriteString(" ")
	b.WriteString(h.ToSpecialist)
	b.WriteString("\n")
	b.WriteString(reasonPrefix)
	b.WriteString(" ")
	b.WriteString(singleLine(h.Reason))
	b.WriteString("\n")

	if len(h.Context) == 0 {
		return b.String()
	}

	b.WriteString(contextLine)
	b.WriteString("\n")

	keys := make([]string, 0, len(h.Context))
	for k := range h.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(bulletPrefix)
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(renderValue(h.Context[k]))
		b.WriteString("\n")
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return singleLine(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// singleLine collapses newlines; Reason and string values are one line on
// the wire.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
