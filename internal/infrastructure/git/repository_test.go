package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/branchflow/branchflow/internal/errors"
)

// testRepoHelper builds throwaway repositories for adapter tests.
type testRepoHelper struct {
	t       *testing.T
	repoDir string
	repo    *gogit.Repository
	adapter *Repository
}

func newTestRepo(t *testing.T) *testRepoHelper {
	t.Helper()

	repoDir := t.TempDir()
	repo, err := gogit.PlainInit(repoDir, false)
	if err != nil {
		t.Fatalf("failed to init test repo: %v", err)
	}

	cfg := DefaultConfig()
	cfg.RepoPath = repoDir

	return &testRepoHelper{
		t:       t,
		repoDir: repoDir,
		repo:    repo,
		adapter: NewRepository(cfg, repo),
	}
}

func (h *testRepoHelper) makeCommit(message string) string {
	h.t.Helper()

	filename := filepath.Join(h.repoDir, "test.txt")
	if err := os.WriteFile(filename, []byte(message), 0644); err != nil {
		h.t.Fatalf("failed to write test file: %v", err)
	}

	worktree, err := h.repo.Worktree()
	if err != nil {
		h.t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add("test.txt"); err != nil {
		h.t.Fatalf("failed to stage file: %v", err)
	}

	hash, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		h.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

func (h *testRepoHelper) makeTag(name string) {
	h.t.Helper()

	head, err := h.repo.Head()
	if err != nil {
		h.t.Fatalf("failed to get HEAD: %v", err)
	}
	ref := plumbing.NewHashReference(plumbing.NewTagReferenceName(name), head.Hash())
	if err := h.repo.Storer.SetReference(ref); err != nil {
		h.t.Fatalf("failed to create tag: %v", err)
	}
}

func (h *testRepoHelper) currentBranch() string {
	h.t.Helper()
	head, err := h.repo.Head()
	if err != nil {
		h.t.Fatalf("failed to get HEAD: %v", err)
	}
	return head.Name().Short()
}

func (h *testRepoHelper) checkout(branch string) {
	h.t.Helper()

	worktree, err := h.repo.Worktree()
	if err != nil {
		h.t.Fatalf("failed to get worktree: %v", err)
	}
	err = worktree.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  true,
	})
	if err != nil {
		h.t.Fatalf("failed to checkout %s: %v", branch, err)
	}
}

func (h *testRepoHelper) makeFileCommit(filename, content, message string) string {
	h.t.Helper()

	path := filepath.Join(h.repoDir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to write %s: %v", filename, err)
	}

	worktree, err := h.repo.Worktree()
	if err != nil {
		h.t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := worktree.Add(filename); err != nil {
		h.t.Fatalf("failed to stage %s: %v", filename, err)
	}

	hash, err := worktree.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		h.t.Fatalf("failed to commit: %v", err)
	}
	return hash.String()
}

// branchFiles reads the tree at a branch head as path to content.
func (h *testRepoHelper) branchFiles(branch string) map[string]string {
	h.t.Helper()

	head, err := h.adapter.Head(context.Background(), branch)
	if err != nil {
		h.t.Fatalf("Head(%s): %v", branch, err)
	}
	commit, err := h.repo.CommitObject(plumbing.NewHash(head))
	if err != nil {
		h.t.Fatalf("read commit: %v", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		h.t.Fatalf("read tree: %v", err)
	}

	files := make(map[string]string)
	err = tree.Files().ForEach(func(f *object.File) error {
		content, contentErr := f.Contents()
		if contentErr != nil {
			return contentErr
		}
		files[f.Name] = content
		return nil
	})
	if err != nil {
		h.t.Fatalf("walk tree: %v", err)
	}
	return files
}

func TestTagsAndLookup(t *testing.T) {
	h := newTestRepo(t)
	sha := h.makeCommit("feat: initial")
	h.makeTag("v1.0.0")

	tags, err := h.adapter.Tags(context.Background())
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	if tags["v1.0.0"] != sha {
		t.Errorf("tags[v1.0.0] = %q, want %q", tags["v1.0.0"], sha)
	}

	got, found, err := h.adapter.Lookup(context.Background(), "v1.0.0")
	if err != nil || !found || got != sha {
		t.Errorf("Lookup = (%q, %v, %v), want (%q, true, nil)", got, found, err, sha)
	}

	_, found, err = h.adapter.Lookup(context.Background(), "v9.9.9")
	if err != nil || found {
		t.Errorf("Lookup of missing tag = (found=%v, err=%v), want (false, nil)", found, err)
	}
}

func TestCreateTagIsWriteOnce(t *testing.T) {
	h := newTestRepo(t)
	first := h.makeCommit("feat: initial")
	second := h.makeCommit("fix: follow-up")

	if err := h.adapter.Create(context.Background(), "v1.0.0", first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := h.adapter.Create(context.Background(), "v1.0.0", second)
	if !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("second Create = %v, want KindConflict", err)
	}

	// The original tag target is unchanged.
	sha, _, err := h.adapter.Lookup(context.Background(), "v1.0.0")
	if err != nil || sha != first {
		t.Errorf("Lookup after conflict = (%q, %v), want original sha", sha, err)
	}
}

func TestLatestVersionTag(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: one")
	h.makeTag("v1.2.0")
	h.makeCommit("feat: two")
	h.makeTag("v1.10.0")
	h.makeCommit("chore: rc")
	h.makeTag("v1.11.0-rc.1")
	h.makeTag("not-a-version")

	name, err := h.adapter.LatestVersionTag(context.Background(), "v")
	if err != nil {
		t.Fatalf("LatestVersionTag: %v", err)
	}
	if name != "v1.10.0" {
		t.Errorf("latest = %q, want v1.10.0 (prereleases excluded, numeric ordering)", name)
	}
}

func TestCommitsSinceReturnsOldestFirst(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: first")
	h.makeTag("v1.0.0")
	shaA := h.makeCommit("fix: second")
	shaB := h.makeCommit("feat: third")

	branch := h.currentBranch()
	commits, err := h.adapter.CommitsSince(context.Background(), branch, "v1.0.0")
	if err != nil {
		t.Fatalf("CommitsSince: %v", err)
	}

	if len(commits) != 2 {
		t.Fatalf("commits = %d, want 2", len(commits))
	}
	if commits[0].SHA() != shaA || commits[1].SHA() != shaB {
		t.Errorf("order = [%s, %s], want oldest first [%s, %s]",
			commits[0].ShortSHA(), commits[1].ShortSHA(), shaA[:7], shaB[:7])
	}
	if commits[0].Subject() != "fix: second" {
		t.Errorf("subject = %q, want %q", commits[0].Subject(), "fix: second")
	}
}

func TestCreateAndDeleteBranch(t *testing.T) {
	h := newTestRepo(t)
	sha := h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "release/1.0.0", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}

	exists, err := h.adapter.BranchExists(context.Background(), "release/1.0.0")
	if err != nil || !exists {
		t.Fatalf("BranchExists = (%v, %v), want (true, nil)", exists, err)
	}

	head, err := h.adapter.Head(context.Background(), "release/1.0.0")
	if err != nil || head != sha {
		t.Errorf("Head = (%q, %v), want base head %q", head, err, sha)
	}

	// Creating the same branch again conflicts.
	err = h.adapter.CreateBranch(context.Background(), "release/1.0.0", base)
	if !errors.IsKind(err, errors.KindConflict) {
		t.Fatalf("duplicate CreateBranch = %v, want KindConflict", err)
	}

	if err := h.adapter.DeleteBranch(context.Background(), "release/1.0.0"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	exists, _ = h.adapter.BranchExists(context.Background(), "release/1.0.0")
	if exists {
		t.Error("branch still exists after delete")
	}

	err = h.adapter.DeleteBranch(context.Background(), "release/1.0.0")
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Fatalf("second DeleteBranch = %v, want KindNotFound", err)
	}
}

func TestMergeBranchFastForward(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "develop", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	tip := h.makeCommit("feat: more work")

	// base advanced past develop, so develop fast-forwards onto it.
	if err := h.adapter.MergeBranch(context.Background(), base, "develop"); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}

	head, err := h.adapter.Head(context.Background(), "develop")
	if err != nil || head != tip {
		t.Errorf("develop head = (%q, %v), want fast-forward to %q", head, err, tip)
	}
}

func TestMergeBranchCreatesMergeCommit(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "side", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	// Advance both branches so neither is an ancestor of the other.
	baseTip := h.makeCommit("feat: on base")
	sideShaRef, err := h.repo.Reference(plumbing.NewBranchReferenceName("side"), true)
	if err != nil {
		t.Fatalf("resolve side: %v", err)
	}
	sideSha := sideShaRef.Hash()

	if err := h.adapter.MergeBranch(context.Background(), "side", base); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}

	head, err := h.adapter.Head(context.Background(), base)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	mergeCommit, err := h.repo.CommitObject(plumbing.NewHash(head))
	if err != nil {
		t.Fatalf("read merge commit: %v", err)
	}
	if mergeCommit.NumParents() != 2 {
		t.Fatalf("merge commit parents = %d, want 2", mergeCommit.NumParents())
	}
	parents := map[string]bool{
		mergeCommit.ParentHashes[0].String(): true,
		mergeCommit.ParentHashes[1].String(): true,
	}
	if !parents[baseTip] || !parents[sideSha.String()] {
		t.Errorf("merge parents = %v, want base tip and side tip", mergeCommit.ParentHashes)
	}
}

func TestMergeBranchPreservesTargetOnlyChanges(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "develop", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	// Diverge: develop and base each gain a file the other lacks.
	h.checkout("develop")
	h.makeFileCommit("develop-only.txt", "develop work", "feat: develop work")
	h.checkout(base)
	h.makeFileCommit("main-only.txt", "main work", "fix: main work")

	if err := h.adapter.MergeBranch(context.Background(), base, "develop"); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}

	files := h.branchFiles("develop")
	if files["develop-only.txt"] != "develop work" {
		t.Errorf("develop-only.txt = %q, want it to survive the merge", files["develop-only.txt"])
	}
	if files["main-only.txt"] != "main work" {
		t.Errorf("main-only.txt = %q, want it merged in from %s", files["main-only.txt"], base)
	}
}

func TestMergeBranchConflictRejected(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "develop", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	// Both sides add the same path with different content.
	h.checkout("develop")
	h.makeFileCommit("shared.txt", "develop version", "feat: develop shared")
	h.checkout(base)
	h.makeFileCommit("shared.txt", "main version", "feat: main shared")

	before, err := h.adapter.Head(context.Background(), "develop")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	err = h.adapter.MergeBranch(context.Background(), base, "develop")
	if !errors.IsKind(err, errors.KindRejected) {
		t.Fatalf("MergeBranch = %v, want KindRejected", err)
	}

	after, err := h.adapter.Head(context.Background(), "develop")
	if err != nil || after != before {
		t.Errorf("develop head = (%q, %v), want untouched %q", after, err, before)
	}
}

func TestCherryPick(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "support/1.x", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	fix := h.makeCommit("fix: urgent patch")

	if err := h.adapter.CherryPick(context.Background(), fix, "support/1.x"); err != nil {
		t.Fatalf("CherryPick: %v", err)
	}

	head, err := h.adapter.Head(context.Background(), "support/1.x")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	picked, err := h.repo.CommitObject(plumbing.NewHash(head))
	if err != nil {
		t.Fatalf("read picked commit: %v", err)
	}
	if picked.Message != "fix: urgent patch" {
		t.Errorf("picked message = %q, want original message", picked.Message)
	}
	if picked.Hash.String() == fix {
		t.Error("cherry-pick reused the original commit instead of replaying it")
	}
}

func TestCherryPickPreservesBranchOnlyFiles(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "support/1.x", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	h.checkout("support/1.x")
	h.makeFileCommit("support-only.txt", "support work", "feat: support work")
	h.checkout(base)
	fix := h.makeFileCommit("hotfix.txt", "the patch", "fix: urgent patch")

	if err := h.adapter.CherryPick(context.Background(), fix, "support/1.x"); err != nil {
		t.Fatalf("CherryPick: %v", err)
	}

	// Only the picked commit's diff lands; the branch keeps its own files.
	files := h.branchFiles("support/1.x")
	if files["support-only.txt"] != "support work" {
		t.Errorf("support-only.txt = %q, want it to survive the pick", files["support-only.txt"])
	}
	if files["hotfix.txt"] != "the patch" {
		t.Errorf("hotfix.txt = %q, want the picked change applied", files["hotfix.txt"])
	}

	head, err := h.adapter.Head(context.Background(), "support/1.x")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	picked, err := h.repo.CommitObject(plumbing.NewHash(head))
	if err != nil {
		t.Fatalf("read picked commit: %v", err)
	}
	if picked.Message != "fix: urgent patch" {
		t.Errorf("picked message = %q, want original message", picked.Message)
	}
}

func TestCherryPickConflictRejected(t *testing.T) {
	h := newTestRepo(t)
	h.makeCommit("feat: initial")
	base := h.currentBranch()

	if err := h.adapter.CreateBranch(context.Background(), "support/1.x", base); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	// The branch and the picked commit add the same path differently.
	h.checkout("support/1.x")
	h.makeFileCommit("patch.txt", "support version", "fix: support patch")
	h.checkout(base)
	fix := h.makeFileCommit("patch.txt", "main version", "fix: main patch")

	before, err := h.adapter.Head(context.Background(), "support/1.x")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}

	err = h.adapter.CherryPick(context.Background(), fix, "support/1.x")
	if !errors.IsKind(err, errors.KindRejected) {
		t.Fatalf("CherryPick = %v, want KindRejected", err)
	}

	after, err := h.adapter.Head(context.Background(), "support/1.x")
	if err != nil || after != before {
		t.Errorf("support head = (%q, %v), want untouched %q", after, err, before)
	}
}
