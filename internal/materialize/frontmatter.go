// Package materialize projects (Workspace CRDT + Body CRDTs) onto a list of
// markdown files with YAML frontmatter, and the reverse: parsing a
// frontmatter+body file back into metadata and body text. The read path is
// grounded on the teacher's internal/markdown/frontmatter.go (the
// github.com/adrg/frontmatter + inline-map envelope pattern); the write
// path's exact field order and quoting rules have no general-purpose YAML
// library equivalent and are grounded on original_source's
// metadata_writer.rs instead (see DESIGN.md).
package materialize

import (
	"bytes"

	"github.com/adrg/frontmatter"
	"github.com/goliatone/diaryx-sync/internal/crdt"
	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// FrontMatter is the on-disk projection of a FileMetadata row: part_of and
// contents already hold display-formatted link strings (resolved from
// doc-ids by the Materializer), not raw doc-ids.
type FrontMatter struct {
	Title       string
	PartOf      string
	Contents    *[]string
	Audience    []string
	Description string
	Attachments []crdt.BinaryRef
	Updated     int64
	Extra       map[string]any
}

type envelope struct {
	Title       string              `yaml:"title,omitempty"`
	PartOf      string              `yaml:"part_of,omitempty"`
	Contents    *[]string           `yaml:"contents,omitempty"`
	Audience    []string            `yaml:"audience,omitempty"`
	Description string              `yaml:"description,omitempty"`
	Attachments []crdt.BinaryRef    `yaml:"attachments,omitempty"`
	Updated     any                 `yaml:"updated,omitempty"`
	Extra       map[string]any      `yaml:",inline"`
}

// ParseFrontMatter splits raw file bytes into frontmatter metadata and the
// remaining markdown body, using adrg/frontmatter the same way the teacher
// repo's markdown package does.
func ParseFrontMatter(source []byte) (FrontMatter, []byte, error) {
	var env envelope
	reader := bytes.NewReader(source)
	body, err := frontmatter.Parse(reader, &env)
	if err != nil {
		return FrontMatter{}, nil, diaryxerrors.Parse(err, "parse frontmatter")
	}

	updated := parseUpdated(env.Updated)

	extra := env.Extra
	if extra == nil {
		extra = map[string]any{}
	}

	return FrontMatter{
		Title:       env.Title,
		PartOf:      env.PartOf,
		Contents:    env.Contents,
		Audience:    env.Audience,
		Description: env.Description,
		Attachments: env.Attachments,
		Updated:     updated,
		Extra:       extra,
	}, body, nil
}
