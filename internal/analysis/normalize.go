package analysis

import (
	"encoding/json"
	"strconv"
	"strings"
)

const (
	Unknown = "Unknown"
	fence   = "```"
)

// Result is the three-field analysis shown to the user. Every field is
// always populated.
type Result struct {
	GeneralDescription string `json:"general_description" example:"A cat on a sofa."`
	NumberOfPeople     string `json:"number_of_people" example:"No people"`
	Objects            string `json:"objects" example:"Cat, Sofa"`
}

var fieldAliases = struct {
	description, people, objects []string
}{
	description: []string{"general_description", "generalDescription", "description"},
	people:      []string{"number_of_people", "numberOfPeople", "people"},
	objects:     []string{"objects", "main_objects", "mainObjects"},
}

// Normalize turns a raw model reply into a Result. It never fails: text that
// is not a JSON object becomes the description with the other fields set to
// Unknown.
func Normalize(raw string) Result {
	res, _ := normalize(raw)
	return res
}

func normalize(raw string) (Result, bool) {
	cleaned := StripFences(raw)
	if res, ok := parse(cleaned); ok {
		return res, true
	}
	return Result{
		GeneralDescription: cleaned,
		NumberOfPeople:     Unknown,
		Objects:            Unknown,
	}, false
}

// StripFences removes one surrounding markdown code fence, with or without a
// language tag.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, fence) {
		return s
	}
	s = strings.TrimPrefix(s, fence)

	if line, rest, ok := strings.Cut(s, "\n"); ok && isFenceTag(line) {
		s = rest
	} else if tag := leadingTag(s); tag != "" && strings.HasPrefix(strings.TrimSpace(s[len(tag):]), "{") {
		s = s[len(tag):]
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

func isFenceTag(line string) bool {
	line = strings.TrimSpace(line)
	return len(leadingTag(line)) == len(line)
}

func leadingTag(s string) string {
	for i, r := range s {
		if !isTagRune(r) {
			return s[:i]
		}
	}
	return s
}

func isTagRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '+'
}

func parse(s string) (Result, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return Result{}, false
	}

	return Result{
		GeneralDescription: orUnknown(lookup(fields, fieldAliases.description)),
		NumberOfPeople:     orUnknown(lookup(fields, fieldAliases.people)),
		Objects:            orUnknown(lookup(fields, fieldAliases.objects)),
	}, true
}

func lookup(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			if text := fieldText(raw); text != "" {
				return text
			}
		}
	}
	return ""
}

func fieldText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return ""
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			b, _ := json.Marshal(item)
			if text := fieldText(b); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, _ := json.Marshal(val)
		return string(b)
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
