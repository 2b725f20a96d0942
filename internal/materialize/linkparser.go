package materialize

import (
	"path"
	"regexp"
	"strings"
)

// LinkFormat controls how a ParsedLink is re-serialized. MarkdownRoot is
// the preferred write format; the others are accepted on read.
type LinkFormat int

const (
	MarkdownRoot LinkFormat = iota // default
	MarkdownRelative
	PlainRelative
	PlainCanonical
)

// PathType classifies how a raw link path was written, before resolution
// to a canonical workspace-relative path.
type PathType int

const (
	PathWorkspaceRoot PathType = iota
	PathRelative
	PathAmbiguous
)

// ParsedLink is a partially-resolved reference parsed out of a part_of or
// contents frontmatter value.
type ParsedLink struct {
	Title    string
	Path     string
	PathType PathType
}

var markdownLinkPattern = regexp.MustCompile(`^\[([^\]]*)\]\(([^)]*)\)$`)

// ParseLink accepts any of the read formats: "[Title](/abs)",
// "[Title](../rel)", plain "/abs", plain "../rel", or plain "name.md"
// (relative to the current file).
func ParseLink(value string) ParsedLink {
	if m := markdownLinkPattern.FindStringSubmatch(strings.TrimSpace(value)); m != nil {
		rawPath := m[2]
		return ParsedLink{Title: m[1], Path: stripLeadingSlash(rawPath), PathType: determinePathType(rawPath)}
	}
	return ParsedLink{Path: stripLeadingSlash(value), PathType: determinePathType(value)}
}

func determinePathType(p string) PathType {
	switch {
	case strings.HasPrefix(p, "/"):
		return PathWorkspaceRoot
	case strings.HasPrefix(p, "../") || strings.HasPrefix(p, "./") || p == ".." || p == ".":
		return PathRelative
	default:
		return PathAmbiguous
	}
}

func stripLeadingSlash(p string) string {
	if strings.HasPrefix(p, "/") {
		return p[1:]
	}
	return p
}

// ToCanonical resolves a ParsedLink to a workspace-relative, forward-slash,
// no-leading-slash path. WorkspaceRoot paths are already canonical;
// Relative and Ambiguous paths are resolved against currentFilePath's
// parent directory.
func ToCanonical(parsed ParsedLink, currentFilePath string) string {
	if parsed.PathType == PathWorkspaceRoot {
		return NormalizePath(parsed.Path)
	}
	dir := path.Dir(currentFilePath)
	if dir == "." {
		return NormalizePath(parsed.Path)
	}
	return NormalizePath(dir + "/" + parsed.Path)
}

// NormalizePath drops "." segments and resolves ".." by popping the
// preceding segment, unless already at the root.
func NormalizePath(p string) string {
	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	return strings.Join(out, "/")
}

// FormatLink renders title+canonical path back into one of the link
// formats. The default write format is MarkdownRoot:
// "[Title](/workspace/relative/path.md)".
func FormatLink(title, canonicalPath string, format LinkFormat) string {
	switch format {
	case MarkdownRelative:
		return "[" + title + "](" + canonicalPath + ")"
	case PlainRelative, PlainCanonical:
		return canonicalPath
	default: // MarkdownRoot
		return "[" + title + "](/" + canonicalPath + ")"
	}
}
