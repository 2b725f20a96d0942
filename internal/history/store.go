// Package history implements the content-addressed History Store described
// in spec.md §4.10: a blob + tree + commit store, parent-linked, identical in
// shape to git's object model. Rather than hand-rolling object-format
// encoding, it is built directly on github.com/go-git/go-git/v5's plumbing
// layer (plumbing/object.Tree, object.Commit, filemode.FileMode), which
// appears across a large share of the retrieval pack's other example repos;
// see DESIGN.md for the full grounding note. The result is a real git
// repository on disk, satisfying spec.md §6's interoperability requirement
// for free.
package history

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/goliatone/diaryx-sync/internal/diaryxerrors"
)

// Hash is the content-addressed object id used throughout the History
// Store; it is go-git's own hash type, re-exported so callers never import
// go-git directly.
type Hash = plumbing.Hash

// ZeroHash is the absence of a hash, used when there is no parent/head.
var ZeroHash = plumbing.ZeroHash

// ModeFile and ModeDir are the git file modes used for WriteTree entries
// (100644 and 040000 respectively), re-exported so callers never need to
// import go-git's filemode package directly.
var (
	ModeFile = filemode.Regular
	ModeDir  = filemode.Dir
)

// RepoKind selects the on-disk layout at Init time.
type RepoKind int

const (
	// Standard lays out "<root>/.git" plus a working tree at <root>; the
	// working tree itself is never touched by the History Store (the
	// Materializer/write-back path owns it), but git tooling can check it
	// out normally.
	Standard RepoKind = iota
	// Bare stores git objects directly at <root> with no working tree.
	Bare
)

// EntryKind distinguishes a tree entry's object type for WriteTree.
type EntryKind int

const (
	KindBlob EntryKind = iota
	KindTree
)

// TreeEntry is one row passed to WriteTree: a name, the kind and hash of
// the object it refers to, and its git file mode (100644 for blobs, 040000
// for trees).
type TreeEntry struct {
	Name string
	Kind EntryKind
	Hash Hash
	Mode filemode.FileMode
}

// Author identifies who a commit is attributed to.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor is the author recorded on every commit pipeline (§4.10),
// ported from original_source/crdt/git/commit.rs's CommitOptions defaults.
var DefaultAuthor = Author{Name: "Diaryx", Email: "noreply@diaryx.app"}

// CommitInfo is the result of LookupCommit: the fields a caller needs
// without depending on go-git's object.Commit directly.
type CommitInfo struct {
	Hash      Hash
	TreeHash  Hash
	Parents   []Hash
	Author    Author
	Message   string
	Committed time.Time
}

const defaultBranchRefName = plumbing.ReferenceName("refs/heads/diaryx")

// Store is a content-addressed blob/tree/commit store backed by a real git
// object database. One Store corresponds to one workspace's history.
type Store struct {
	repo *git.Repository
}

// Init creates a fresh History Store at root, per the chosen RepoKind, and
// excludes the Diaryx control directory from the working tree for Standard
// repos, matching original_source/crdt/git/repo.rs.
func Init(root string, kind RepoKind) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, diaryxerrors.IO(err, "create history store root")
	}
	repo, err := git.PlainInit(root, kind == Bare)
	if err != nil {
		return nil, diaryxerrors.History(err, "init history store")
	}

	if kind == Standard {
		if err := writeGitignore(root); err != nil {
			return nil, err
		}
	}

	return &Store{repo: repo}, nil
}

// Open opens an existing History Store at root. kind must match the layout
// Init originally created it with.
func Open(root string, kind RepoKind) (*Store, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, diaryxerrors.History(err, "open history store")
	}
	return &Store{repo: repo}, nil
}

func writeGitignore(root string) error {
	path := filepath.Join(root, ".gitignore")
	if err := os.WriteFile(path, []byte(".diaryx/\n"), 0o644); err != nil {
		return diaryxerrors.IO(err, "write .gitignore")
	}
	return nil
}

// WriteBlob stores content as a git blob object and returns its hash.
// Writing the same bytes twice is idempotent (same hash, no duplicate
// storage), which is what content-addressing gives for free.
func (s *Store) WriteBlob(content []byte) (Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return ZeroHash, diaryxerrors.History(err, "open blob writer")
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return ZeroHash, diaryxerrors.History(err, "write blob content")
	}
	if err := w.Close(); err != nil {
		return ZeroHash, diaryxerrors.History(err, "close blob writer")
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return ZeroHash, diaryxerrors.History(err, "store blob object")
	}
	return hash, nil
}

// WriteTree stores a tree object from the given entries, sorted the way
// git requires (directory names compared as if suffixed with "/"), and
// returns its hash.
func (s *Store) WriteTree(entries []TreeEntry) (Hash, error) {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return treeSortKey(sorted[i]) < treeSortKey(sorted[j])
	})

	tree := &object.Tree{Entries: make([]object.TreeEntry, 0, len(sorted))}
	for _, e := range sorted {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: e.Name,
			Mode: e.Mode,
			Hash: e.Hash,
		})
	}

	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	if err := tree.Encode(obj); err != nil {
		return ZeroHash, diaryxerrors.History(err, "encode tree object")
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return ZeroHash, diaryxerrors.History(err, "store tree object")
	}
	return hash, nil
}

func treeSortKey(e TreeEntry) string {
	if e.Kind == KindTree {
		return e.Name + "/"
	}
	return e.Name
}

// Commit creates a commit object over tree with the given parents, author,
// message and timestamp, then advances the default branch ref to point at
// it and makes HEAD a symbolic ref to that branch if it is not one already.
func (s *Store) Commit(tree Hash, parents []Hash, author Author, message string, when time.Time) (Hash, error) {
	sig := object.Signature{Name: author.Name, Email: author.Email, When: when}
	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return ZeroHash, diaryxerrors.History(err, "encode commit object")
	}
	hash, err := s.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return ZeroHash, diaryxerrors.History(err, "store commit object")
	}

	if err := s.repo.Storer.SetReference(plumbing.NewHashReference(defaultBranchRefName, hash)); err != nil {
		return ZeroHash, diaryxerrors.History(err, "advance branch ref")
	}
	headRef, err := s.repo.Storer.Reference(plumbing.HEAD)
	if err != nil && !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ZeroHash, diaryxerrors.History(err, "read HEAD")
	}
	if headRef == nil || headRef.Target() != defaultBranchRefName {
		if err := s.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, defaultBranchRefName)); err != nil {
			return ZeroHash, diaryxerrors.History(err, "set HEAD")
		}
	}

	return hash, nil
}

// ParseHash decodes a hex-encoded commit/tree/blob id, as accepted from a
// CLI flag or a sync-protocol text message, so callers never need to
// import go-git's plumbing package directly.
func ParseHash(hex string) (Hash, error) {
	if len(hex) != 40 {
		return ZeroHash, diaryxerrors.Parse(nil, "commit hash must be 40 hex characters")
	}
	h := plumbing.NewHash(hex)
	if h.IsZero() && hex != "0000000000000000000000000000000000000000" {
		return ZeroHash, diaryxerrors.Parse(nil, "invalid commit hash")
	}
	return h, nil
}

// LookupCommit reads back a commit object by hash.
func (s *Store) LookupCommit(id Hash) (*CommitInfo, error) {
	c, err := object.GetCommit(s.repo.Storer, id)
	if err != nil {
		return nil, diaryxerrors.NotFound(err, "lookup commit")
	}
	return &CommitInfo{
		Hash:      c.Hash,
		TreeHash:  c.TreeHash,
		Parents:   c.ParentHashes,
		Author:    Author{Name: c.Author.Name, Email: c.Author.Email},
		Message:   c.Message,
		Committed: c.Author.When,
	}, nil
}

// Head returns the current commit hash and true, or (ZeroHash, false) if
// the repository has no commits yet.
func (s *Store) Head() (Hash, bool, error) {
	ref, err := s.repo.Storer.Reference(plumbing.HEAD)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ZeroHash, false, nil
	}
	if err != nil {
		return ZeroHash, false, diaryxerrors.History(err, "read HEAD")
	}
	resolved, err := storer.ResolveReference(s.repo.Storer, ref)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return ZeroHash, false, nil
	}
	if err != nil {
		return ZeroHash, false, diaryxerrors.History(err, "resolve HEAD")
	}
	return resolved.Hash(), true, nil
}

// RevwalkFromHead returns every commit hash reachable from HEAD, newest
// first, by walking parent links.
func (s *Store) RevwalkFromHead() ([]Hash, error) {
	head, ok, err := s.Head()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	startCommit, err := object.GetCommit(s.repo.Storer, head)
	if err != nil {
		return nil, diaryxerrors.History(err, "load HEAD commit")
	}

	iter := object.NewCommitPreorderIter(startCommit, nil, nil)
	defer iter.Close()

	var out []Hash
	err = iter.ForEach(func(c *object.Commit) error {
		out = append(out, c.Hash)
		return nil
	})
	if err != nil {
		return nil, diaryxerrors.History(err, "walk commit history")
	}
	return out, nil
}

// ReadTreeEntry is one row read back from ReadTree.
type ReadTreeEntry struct {
	Name string
	Kind EntryKind
	Hash Hash
}

// ReadTree returns the entries of the tree object at hash, used by Rebuild
// (§4.11) to walk committed file content back into a fresh CRDT.
func (s *Store) ReadTree(hash Hash) ([]ReadTreeEntry, error) {
	tree, err := object.GetTree(s.repo.Storer, hash)
	if err != nil {
		return nil, diaryxerrors.History(err, "load tree object")
	}
	out := make([]ReadTreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		kind := KindBlob
		if e.Mode == filemode.Dir {
			kind = KindTree
		}
		out = append(out, ReadTreeEntry{Name: e.Name, Kind: kind, Hash: e.Hash})
	}
	return out, nil
}

// BlobContent reads back a blob's bytes by hash.
func (s *Store) BlobContent(hash Hash) ([]byte, error) {
	blob, err := object.GetBlob(s.repo.Storer, hash)
	if err != nil {
		return nil, diaryxerrors.History(err, "load blob object")
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, diaryxerrors.History(err, "open blob reader")
	}
	defer reader.Close()
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, diaryxerrors.History(err, "read blob content")
	}
	return content, nil
}
