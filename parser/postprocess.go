package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// Postprocessor rewrites a raw field value. It never errors or panics.
// join_lines, collapse and lower always produce a value. line:N and
// quoted:N report false when the raw value has no non-blank Nth line or
// segment, and the field is then recorded as absent.
type Postprocessor func(string) (string, bool)

// LineDelimiter joins the lines of a multi-line cell under join_lines.
const LineDelimiter = ", "

// TriggerDelimiter separates the arguments embedded in a scripting attribute
// such as onclick="openWindow('https://host/terms.pdf','Terms')".
const TriggerDelimiter = "'"

// ParsePostprocess resolves a schema postprocess reference. The reference is
// either a bare name or name:arg.
//
//	join_lines   line breaks become LineDelimiter
//	collapse     all whitespace becomes a single space
//	lower        lower-cases the value
//	line:N       the Nth (0-based) line
//	quoted:N     the Nth segment after splitting on TriggerDelimiter
func ParsePostprocess(ref string) (Postprocessor, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(ref), ":")

	switch name {
	case "":
		return nil, nil
	case "join_lines":
		return joinLines, nil
	case "collapse":
		return collapse, nil
	case "lower":
		return func(s string) (string, bool) { return strings.ToLower(s), true }, nil
	case "line", "quoted":
		if !hasArg {
			return nil, fmt.Errorf("postprocess %q requires an index", name)
		}
		idx, err := strconv.Atoi(arg)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("postprocess %q: invalid index %q", name, arg)
		}
		if name == "line" {
			return nthLine(idx), nil
		}
		return quotedSegment(idx), nil
	default:
		return nil, fmt.Errorf("unknown postprocess %q", name)
	}
}

func joinLines(s string) (string, bool) {
	return strings.Join(strings.Split(s, "\n"), LineDelimiter), true
}

func collapse(s string) (string, bool) {
	return strings.Join(strings.Fields(s), " "), true
}

func nthLine(idx int) Postprocessor {
	return func(s string) (string, bool) {
		lines := strings.Split(s, "\n")
		if idx >= len(lines) {
			return "", false
		}
		line := strings.TrimSpace(lines[idx])
		return line, line != ""
	}
}

func quotedSegment(idx int) Postprocessor {
	return func(s string) (string, bool) {
		parts := strings.Split(s, TriggerDelimiter)
		if idx >= len(parts) {
			return "", false
		}
		seg := strings.TrimSpace(parts[idx])
		return seg, seg != ""
	}
}
