package materialize

import (
	"fmt"
	"strconv"
	"strings"
)

// quoteTriggerChars are the characters whose presence forces a scalar to be
// double-quoted, taken verbatim from the write-path contract.
const quoteTriggerChars = ":#[]{}|>&*!?'\"%@`\n"

// yamlKeywords are reserved words that must be quoted so the YAML reader
// doesn't interpret them as booleans/null.
var yamlKeywords = map[string]bool{
	"true": true, "false": true, "null": true,
	"yes": true, "no": true, "on": true, "off": true,
}

func looksLikeNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isYAMLKeyword(s string) bool {
	return yamlKeywords[strings.ToLower(s)]
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	if strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		return true
	}
	if strings.ContainsAny(s, quoteTriggerChars) {
		return true
	}
	if looksLikeNumber(s) {
		return true
	}
	if isYAMLKeyword(s) {
		return true
	}
	return false
}

// yamlString renders a scalar as either a bare word or a double-quoted
// string with '"' and '\' backslash-escaped, per the write-path contract.
func yamlString(s string) string {
	if !needsQuote(s) {
		return s
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// WriteYAML serializes a FrontMatter in the documented field order: title,
// part_of, contents, audience, description, attachments, updated, extra.
// Returns an empty string if fm has no fields set at all.
func WriteYAML(fm FrontMatter) string {
	var b strings.Builder

	if fm.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", yamlString(fm.Title))
	}
	if fm.PartOf != "" {
		fmt.Fprintf(&b, "part_of: %s\n", yamlString(fm.PartOf))
	}
	if fm.Contents != nil {
		if len(*fm.Contents) == 0 {
			b.WriteString("contents: []\n")
		} else {
			b.WriteString("contents:\n")
			for _, item := range *fm.Contents {
				fmt.Fprintf(&b, "  - %s\n", yamlString(item))
			}
		}
	}
	if len(fm.Audience) > 0 {
		b.WriteString("audience:\n")
		for _, tag := range fm.Audience {
			fmt.Fprintf(&b, "  - %s\n", yamlString(tag))
		}
	}
	if fm.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", yamlString(fm.Description))
	}
	if len(fm.Attachments) > 0 {
		b.WriteString("attachments:\n")
		for _, att := range fm.Attachments {
			fmt.Fprintf(&b, "  - path: %s\n", yamlString(att.Path))
			fmt.Fprintf(&b, "    source: %s\n", yamlString(string(att.Source)))
			fmt.Fprintf(&b, "    hash: %s\n", yamlString(att.Hash))
			fmt.Fprintf(&b, "    mime_type: %s\n", yamlString(att.MimeType))
			fmt.Fprintf(&b, "    size: %d\n", att.Size)
			if att.UploadedAt != nil {
				fmt.Fprintf(&b, "    uploaded_at: %s\n", yamlString(FormatUpdated(*att.UploadedAt)))
			}
			fmt.Fprintf(&b, "    deleted: %t\n", att.Deleted)
		}
	}
	if fm.Updated != 0 {
		fmt.Fprintf(&b, "updated: %s\n", yamlString(FormatUpdated(fm.Updated)))
	}
	for _, key := range sortedKeys(fm.Extra) {
		fmt.Fprintf(&b, "%s: %s\n", key, yamlScalar(fm.Extra[key]))
	}

	return strings.TrimRight(b.String(), "\n")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Simple insertion sort keeps this dependency-free and the extras set
	// is always small.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func yamlScalar(v any) string {
	switch val := v.(type) {
	case string:
		return yamlString(val)
	case bool:
		return strconv.FormatBool(val)
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return yamlString(fmt.Sprintf("%v", val))
	}
}

// Assemble builds the final file content: "---\n" + yaml + "\n---\n\n" +
// body, or just the body if yaml is empty.
func Assemble(fm FrontMatter, body string) string {
	yaml := WriteYAML(fm)
	if yaml == "" {
		return body
	}
	return "---\n" + yaml + "\n---\n\n" + body
}
