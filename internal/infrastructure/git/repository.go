// Package git provides the go-git backed adapter for branch, commit,
// and tag operations.
package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/branchflow/branchflow/internal/domain/changes"
	"github.com/branchflow/branchflow/internal/errors"
)

// Default timeouts for git operations to prevent hangs on slow or
// unreachable repositories.
const (
	// DefaultLocalTimeout is the timeout for local git operations.
	DefaultLocalTimeout = 30 * time.Second

	// DefaultRemoteTimeout is the timeout for remote git operations.
	DefaultRemoteTimeout = 60 * time.Second
)

// errStopIteration signals early termination of commit iteration.
var errStopIteration = stderrors.New("stop iteration")

// withLocalTimeout applies a timeout for local git operations.
func withLocalTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) < DefaultLocalTimeout {
			return ctx, func() {}
		}
	}
	return context.WithTimeout(ctx, DefaultLocalTimeout)
}

// Config configures the repository adapter.
type Config struct {
	// RepoPath is the path to the repository worktree.
	RepoPath string
	// Committer identifies merge and tag authorship.
	CommitterName  string
	CommitterEmail string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		RepoPath:       ".",
		CommitterName:  "branchflow",
		CommitterEmail: "branchflow@localhost",
	}
}

// Repository adapts a go-git repository to the engine's VCS port and
// the tag manager's Store port.
type Repository struct {
	cfg  Config
	repo *gogit.Repository
}

// Open opens the repository at the configured path.
func Open(cfg Config) (*Repository, error) {
	const op = "git.Open"

	absPath, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to resolve repository path")
	}

	repo, err := gogit.PlainOpen(absPath)
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to open repository")
	}

	return &Repository{cfg: cfg, repo: repo}, nil
}

// NewRepository wraps an already opened go-git repository.
func NewRepository(cfg Config, repo *gogit.Repository) *Repository {
	return &Repository{cfg: cfg, repo: repo}
}

// Tags returns all tags as name to commit sha.
func (r *Repository) Tags(ctx context.Context) (map[string]string, error) {
	const op = "git.Tags"

	ctx, cancel := withLocalTimeout(ctx)
	defer cancel()

	iter, err := r.repo.Tags()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to get tags iterator")
	}
	defer iter.Close()

	tags := make(map[string]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		sha, resolveErr := r.resolveTagCommit(ref)
		if resolveErr != nil {
			return resolveErr
		}
		tags[ref.Name().Short()] = sha
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.GitWrap(ctx.Err(), op, "operation canceled")
		}
		return nil, errors.GitWrap(err, op, "failed to iterate tags")
	}

	return tags, nil
}

// LatestVersionTag returns the highest release tag matching the prefix,
// or nil when no tag parses as a version.
func (r *Repository) LatestVersionTag(ctx context.Context, prefix string) (string, error) {
	tags, err := r.Tags(ctx)
	if err != nil {
		return "", err
	}

	var (
		best     *semver.Version
		bestName string
	)
	for name := range tags {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		v, parseErr := semver.NewVersion(strings.TrimPrefix(name, prefix))
		if parseErr != nil || v.Prerelease() != "" || v.Metadata() != "" {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
			bestName = name
		}
	}
	return bestName, nil
}

// Head returns the tip commit of a branch.
func (r *Repository) Head(_ context.Context, branch string) (string, error) {
	const op = "git.Head"

	hash, err := r.resolveRef(branch)
	if err != nil {
		return "", errors.GitWrap(err, op, fmt.Sprintf("failed to resolve branch %s", branch))
	}
	return hash.String(), nil
}

// BranchExists reports whether a local branch exists.
func (r *Repository) BranchExists(_ context.Context, name string) (bool, error) {
	_, err := r.repo.Reference(plumbing.NewBranchReferenceName(name), true)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, errors.GitWrap(err, "git.BranchExists", "failed to resolve branch")
	}
	return true, nil
}

// Branches returns all local branch names, sorted.
func (r *Repository) Branches(ctx context.Context) ([]string, error) {
	const op = "git.Branches"

	iter, err := r.repo.Branches()
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to get branches iterator")
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to iterate branches")
	}

	sort.Strings(names)
	return names, nil
}

// CommitsSince returns the commits on ref after the given tag, oldest
// first. An empty tag returns the full history of ref.
func (r *Repository) CommitsSince(ctx context.Context, ref, tag string) ([]changes.Commit, error) {
	const op = "git.CommitsSince"

	ctx, cancel := withLocalTimeout(ctx)
	defer cancel()

	toHash, err := r.resolveRef(ref)
	if err != nil {
		return nil, errors.GitWrap(err, op, fmt.Sprintf("failed to resolve reference %s", ref))
	}

	var fromHash plumbing.Hash
	if tag != "" {
		fromHash, err = r.resolveRef(tag)
		if err != nil {
			return nil, errors.GitWrap(err, op, fmt.Sprintf("failed to resolve tag %s", tag))
		}
	}

	iter, err := r.repo.Log(&gogit.LogOptions{
		From:  toHash,
		Order: gogit.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, errors.GitWrap(err, op, "failed to get log iterator")
	}
	defer iter.Close()

	const estimatedCommitsPerRelease = 50
	commits := make([]changes.Commit, 0, estimatedCommitsPerRelease)
	err = iter.ForEach(func(c *object.Commit) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if c.Hash == fromHash {
			return errStopIteration
		}
		commits = append(commits, changes.NewCommit(c.Hash.String(), c.Message, c.Committer.When))
		return nil
	})
	if err != nil && !stderrors.Is(err, errStopIteration) {
		if ctx.Err() != nil {
			return nil, errors.GitWrap(ctx.Err(), op, "operation canceled")
		}
		return nil, errors.GitWrap(err, op, "failed to iterate commits")
	}

	// Log walks newest first; callers expect oldest first.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	return commits, nil
}

// CreateBranch creates a branch pointing at the given ref.
func (r *Repository) CreateBranch(_ context.Context, name, fromRef string) error {
	const op = "git.CreateBranch"

	hash, err := r.resolveRef(fromRef)
	if err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to resolve reference %s", fromRef))
	}

	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, true); err == nil {
		return errors.Conflict(op, fmt.Sprintf("branch %s already exists", name))
	}

	ref := plumbing.NewHashReference(refName, hash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to create branch %s", name))
	}
	return nil
}

// DeleteBranch removes a local branch.
func (r *Repository) DeleteBranch(_ context.Context, name string) error {
	const op = "git.DeleteBranch"

	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(refName, true); err != nil {
		return errors.NotFound(op, fmt.Sprintf("branch %s does not exist", name))
	}
	if err := r.repo.Storer.RemoveReference(refName); err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to delete branch %s", name))
	}
	return nil
}

// MergeBranch merges source into target. Fast-forwards when target is
// an ancestor of source; on divergence the trees are merged three-way
// against the merge base, keeping changes unique to either side. Paths
// changed on both sides reject with a conflict requiring operator
// resolution; the target branch is left untouched.
func (r *Repository) MergeBranch(_ context.Context, source, target string) error {
	const op = "git.MergeBranch"

	sourceHash, err := r.resolveRef(source)
	if err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to resolve source %s", source))
	}
	targetRefName := plumbing.NewBranchReferenceName(target)
	targetRef, err := r.repo.Reference(targetRefName, true)
	if err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to resolve target %s", target))
	}

	if sourceHash == targetRef.Hash() {
		return nil
	}

	sourceCommit, err := r.repo.CommitObject(sourceHash)
	if err != nil {
		return errors.GitWrap(err, op, "failed to read source commit")
	}
	targetCommit, err := r.repo.CommitObject(targetRef.Hash())
	if err != nil {
		return errors.GitWrap(err, op, "failed to read target commit")
	}

	ancestor, err := targetCommit.IsAncestor(sourceCommit)
	if err != nil {
		return errors.GitWrap(err, op, "failed to walk history")
	}
	if ancestor {
		ref := plumbing.NewHashReference(targetRefName, sourceHash)
		if err := r.repo.Storer.SetReference(ref); err != nil {
			return errors.GitWrap(err, op, "failed to fast-forward")
		}
		return nil
	}

	var baseFlat map[string]treeEntry
	bases, err := targetCommit.MergeBase(sourceCommit)
	if err != nil {
		return errors.GitWrap(err, op, "failed to find merge base")
	}
	if len(bases) > 0 {
		baseFlat, err = r.flattenCommitTree(bases[0])
		if err != nil {
			return errors.GitWrap(err, op, "failed to read merge base tree")
		}
	}
	targetFlat, err := r.flattenCommitTree(targetCommit)
	if err != nil {
		return errors.GitWrap(err, op, "failed to read target tree")
	}
	sourceFlat, err := r.flattenCommitTree(sourceCommit)
	if err != nil {
		return errors.GitWrap(err, op, "failed to read source tree")
	}

	merged, conflicts := mergeEntries(baseFlat, targetFlat, sourceFlat)
	if len(conflicts) > 0 {
		return errors.Rejected(op, fmt.Sprintf(
			"merging %s into %s needs manual resolution: both sides changed %s",
			source, target, strings.Join(conflicts, ", ")))
	}

	treeHash, err := r.storeTree(merged)
	if err != nil {
		return errors.GitWrap(err, op, "failed to write merged tree")
	}

	mergeHash, err := r.writeCommit(
		fmt.Sprintf("Merge branch '%s' into %s", source, target),
		treeHash,
		[]plumbing.Hash{targetRef.Hash(), sourceHash},
	)
	if err != nil {
		return errors.GitWrap(err, op, "failed to write merge commit")
	}

	ref := plumbing.NewHashReference(targetRefName, mergeHash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.GitWrap(err, op, "failed to update target branch")
	}
	return nil
}

// CherryPick replays a commit onto a branch by applying its diff
// against its first parent onto the branch tree. Paths the branch has
// changed away from the picked commit's parent reject with a conflict;
// the branch is left untouched.
func (r *Repository) CherryPick(_ context.Context, sha, onto string) error {
	const op = "git.CherryPick"

	pick, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to read commit %s", sha))
	}

	ontoRefName := plumbing.NewBranchReferenceName(onto)
	ontoRef, err := r.repo.Reference(ontoRefName, true)
	if err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to resolve branch %s", onto))
	}
	ontoCommit, err := r.repo.CommitObject(ontoRef.Hash())
	if err != nil {
		return errors.GitWrap(err, op, "failed to read branch head")
	}

	var parentFlat map[string]treeEntry
	if pick.NumParents() > 0 {
		parent, parentErr := pick.Parent(0)
		if parentErr != nil {
			return errors.GitWrap(parentErr, op, "failed to read picked commit parent")
		}
		parentFlat, err = r.flattenCommitTree(parent)
		if err != nil {
			return errors.GitWrap(err, op, "failed to read parent tree")
		}
	}
	ontoFlat, err := r.flattenCommitTree(ontoCommit)
	if err != nil {
		return errors.GitWrap(err, op, "failed to read branch tree")
	}
	pickFlat, err := r.flattenCommitTree(pick)
	if err != nil {
		return errors.GitWrap(err, op, "failed to read picked tree")
	}

	merged, conflicts := mergeEntries(parentFlat, ontoFlat, pickFlat)
	if len(conflicts) > 0 {
		return errors.Rejected(op, fmt.Sprintf(
			"cherry-picking %s onto %s needs manual resolution: conflicting paths %s",
			shortSHA(sha), onto, strings.Join(conflicts, ", ")))
	}

	treeHash, err := r.storeTree(merged)
	if err != nil {
		return errors.GitWrap(err, op, "failed to write replayed tree")
	}

	pickHash, err := r.writeCommit(pick.Message, treeHash, []plumbing.Hash{ontoRef.Hash()})
	if err != nil {
		return errors.GitWrap(err, op, "failed to write cherry-pick commit")
	}

	ref := plumbing.NewHashReference(ontoRefName, pickHash)
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to update branch %s", onto))
	}
	return nil
}

// Lookup implements the tag store: it returns the commit a tag points at.
func (r *Repository) Lookup(_ context.Context, name string) (string, bool, error) {
	ref, err := r.repo.Reference(plumbing.NewTagReferenceName(name), true)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", false, nil
		}
		return "", false, errors.GitWrap(err, "git.Lookup", "failed to resolve tag")
	}

	sha, err := r.resolveTagCommit(ref)
	if err != nil {
		return "", false, err
	}
	return sha, true, nil
}

// Create implements the tag store: it records a lightweight tag and
// fails if the name already exists.
func (r *Repository) Create(ctx context.Context, name, sha string) error {
	const op = "git.Create"

	if _, found, err := r.Lookup(ctx, name); err != nil {
		return err
	} else if found {
		return errors.Conflict(op, fmt.Sprintf("tag %s already exists", name))
	}

	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), plumbing.NewHash(sha))
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return errors.GitWrap(err, op, fmt.Sprintf("failed to create tag %s", name))
	}
	return nil
}

// resolveRef resolves a branch, tag, sha, or HEAD to a commit hash.
func (r *Repository) resolveRef(ref string) (plumbing.Hash, error) {
	if ref == "" || ref == "HEAD" {
		head, err := r.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return head.Hash(), nil
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}

// resolveTagCommit resolves a tag reference to the commit it marks,
// peeling annotated tags.
func (r *Repository) resolveTagCommit(ref *plumbing.Reference) (string, error) {
	if obj, err := r.repo.TagObject(ref.Hash()); err == nil {
		return obj.Target.String(), nil
	}
	// Lightweight tag: the reference points at the commit directly.
	return ref.Hash().String(), nil
}

// writeCommit stores a commit object with the given tree and parents.
func (r *Repository) writeCommit(message string, tree plumbing.Hash, parents []plumbing.Hash) (plumbing.Hash, error) {
	sig := object.Signature{
		Name:  r.cfg.CommitterName,
		Email: r.cfg.CommitterEmail,
		When:  time.Now(),
	}

	commit := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// treeEntry identifies a blob at a path inside a flattened tree.
type treeEntry struct {
	hash plumbing.Hash
	mode filemode.FileMode
}

// flattenCommitTree walks a commit's tree recursively and returns its
// blobs keyed by slash-separated path. Directories are implied by the
// paths and not listed.
func (r *Repository) flattenCommitTree(commit *object.Commit) (map[string]treeEntry, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	flat := make(map[string]treeEntry)
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()
	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		flat[name] = treeEntry{hash: entry.Hash, mode: entry.Mode}
	}
	return flat, nil
}

// mergeEntries merges two flattened trees against their common base,
// path by path. A path changed on only one side takes that side's
// entry, deletions included. A path changed to different content on
// both sides is a conflict; the sorted conflict list is returned.
func mergeEntries(base, ours, theirs map[string]treeEntry) (map[string]treeEntry, []string) {
	paths := make(map[string]struct{}, len(base)+len(ours)+len(theirs))
	for p := range base {
		paths[p] = struct{}{}
	}
	for p := range ours {
		paths[p] = struct{}{}
	}
	for p := range theirs {
		paths[p] = struct{}{}
	}

	merged := make(map[string]treeEntry)
	var conflicts []string
	for p := range paths {
		b, inBase := base[p]
		o, inOurs := ours[p]
		t, inTheirs := theirs[p]

		switch {
		case !inOurs && !inTheirs:
			// Deleted on both sides.
		case inOurs && inTheirs && o == t:
			merged[p] = o
		case inBase == inOurs && (!inBase || b == o):
			// Our side left the path alone; take theirs.
			if inTheirs {
				merged[p] = t
			}
		case inBase == inTheirs && (!inBase || b == t):
			// Their side left the path alone; keep ours.
			if inOurs {
				merged[p] = o
			}
		default:
			conflicts = append(conflicts, p)
		}
	}
	sort.Strings(conflicts)
	return merged, conflicts
}

// storeTree writes a flattened tree back as nested tree objects and
// returns the root tree hash. Entries follow git's canonical order,
// where directory names sort with a trailing slash.
func (r *Repository) storeTree(flat map[string]treeEntry) (plumbing.Hash, error) {
	blobs := make(map[string]treeEntry)
	subtrees := make(map[string]map[string]treeEntry)
	for path, entry := range flat {
		dir, rest, nested := strings.Cut(path, "/")
		if !nested {
			blobs[path] = entry
			continue
		}
		if subtrees[dir] == nil {
			subtrees[dir] = make(map[string]treeEntry)
		}
		subtrees[dir][rest] = entry
	}

	type namedEntry struct {
		sortKey string
		entry   object.TreeEntry
	}
	entries := make([]namedEntry, 0, len(blobs)+len(subtrees))
	for name, blob := range blobs {
		entries = append(entries, namedEntry{
			sortKey: name,
			entry:   object.TreeEntry{Name: name, Mode: blob.mode, Hash: blob.hash},
		})
	}
	for name, sub := range subtrees {
		subHash, err := r.storeTree(sub)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, namedEntry{
			sortKey: name + "/",
			entry:   object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash},
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sortKey < entries[j].sortKey
	})

	tree := &object.Tree{Entries: make([]object.TreeEntry, len(entries))}
	for i, e := range entries {
		tree.Entries[i] = e.entry
	}

	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// shortSHA abbreviates a commit SHA for human-facing messages.
func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
