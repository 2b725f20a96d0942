package materialize

import (
	"testing"

	"github.com/goliatone/diaryx-sync/internal/crdt"
)

func TestFrontMatterRoundTrip(t *testing.T) {
	fm := FrontMatter{
		Title:       "Child Doc",
		PartOf:      "[Parent Index](/folder/parent.md)",
		Contents:    &[]string{"[A](/folder/a.md)", "[B](/folder/b.md)"},
		Audience:    []string{"public", "private"},
		Description: "A description: with a colon",
		Attachments: nil,
		Updated:     1700000000000,
		Extra:       map[string]any{"custom_field": "value"},
	}

	content := Assemble(fm, "body text\n")
	parsed, body, err := ParseFrontMatter([]byte(content))
	if err != nil {
		t.Fatalf("ParseFrontMatter failed: %v", err)
	}

	if parsed.Title != fm.Title {
		t.Errorf("title mismatch: got %q want %q", parsed.Title, fm.Title)
	}
	if parsed.PartOf != fm.PartOf {
		t.Errorf("part_of mismatch: got %q want %q", parsed.PartOf, fm.PartOf)
	}
	if parsed.Contents == nil || len(*parsed.Contents) != 2 {
		t.Fatalf("contents mismatch: got %v", parsed.Contents)
	}
	if (*parsed.Contents)[0] != (*fm.Contents)[0] {
		t.Errorf("contents[0] mismatch: got %q want %q", (*parsed.Contents)[0], (*fm.Contents)[0])
	}
	if parsed.Description != fm.Description {
		t.Errorf("description mismatch: got %q want %q", parsed.Description, fm.Description)
	}
	if parsed.Updated != fm.Updated {
		t.Errorf("updated mismatch: got %d want %d", parsed.Updated, fm.Updated)
	}
	if parsed.Extra["custom_field"] != "value" {
		t.Errorf("extra field lost: got %v", parsed.Extra)
	}
	if string(body) != "body text\n" {
		t.Errorf("body mismatch: got %q", string(body))
	}
}

func TestFrontMatterRoundTripWithAttachments(t *testing.T) {
	uploaded := int64(1700000000000)
	fm := FrontMatter{
		Title: "With Attachment",
		Attachments: []crdt.BinaryRef{
			{Path: "images/a.png", Source: crdt.BinarySourceLocal, Hash: "abc123", MimeType: "image/png", Size: 2048, UploadedAt: &uploaded, Deleted: false},
		},
	}

	content := Assemble(fm, "")
	parsed, _, err := ParseFrontMatter([]byte(content))
	if err != nil {
		t.Fatalf("ParseFrontMatter failed: %v", err)
	}
	if len(parsed.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(parsed.Attachments))
	}
	got := parsed.Attachments[0]
	if got.Path != "images/a.png" || got.MimeType != "image/png" || got.Hash != "abc123" || got.Size != 2048 {
		t.Errorf("attachment round trip mismatch: %+v", got)
	}
	if got.UploadedAt == nil || *got.UploadedAt != uploaded {
		t.Errorf("uploaded_at mismatch: %+v", got.UploadedAt)
	}
}

func TestFrontMatterMissingUpdatedFallsBackToNow(t *testing.T) {
	restore := nowMillisFunc
	nowMillisFunc = func() int64 { return 42 }
	defer func() { nowMillisFunc = restore }()

	content := "---\ntitle: No Timestamp\n---\n\nbody\n"
	parsed, _, err := ParseFrontMatter([]byte(content))
	if err != nil {
		t.Fatalf("ParseFrontMatter failed: %v", err)
	}
	if parsed.Updated != 42 {
		t.Errorf("expected fallback-to-now value 42, got %d", parsed.Updated)
	}
}
