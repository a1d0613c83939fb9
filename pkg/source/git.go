// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package source

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	gitplumbing "github.com/go-git/go-git/v5/plumbing"

	"github.com/kraklabs/cargo-core/pkg/cachetracker"
	"github.com/kraklabs/cargo-core/pkg/filelock"
	"github.com/kraklabs/cargo-core/pkg/pkgid"
)

var validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)
var dangerousCharsPattern = regexp.MustCompile("[;&|$`\n\r\\\\]")

func validateGitURL(gitURL string) error {
	if gitURL == "" {
		return fmt.Errorf("git URL is empty")
	}
	if dangerousCharsPattern.MatchString(gitURL) {
		return fmt.Errorf("git URL contains dangerous characters")
	}
	if strings.HasPrefix(gitURL, "http://") || strings.HasPrefix(gitURL, "https://") {
		parsed, err := url.Parse(gitURL)
		if err != nil {
			return fmt.Errorf("invalid URL format: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("git URL missing host")
		}
	}
	return nil
}

// GitSource serves a package materialized from a git repository
// checked out at a single rev (a branch, tag, or full commit SHA).
// Clone/fetch/checkout go through go-git; the two operations go-git
// exposes awkwardly relative to the plain CLI, resolving a short rev
// and diffing a working tree, shell out to `git` instead.
type GitSource struct {
	url string
	rev string

	load    Loader
	tracker *cachetracker.Tracker
	dbDir   string // bare mirror checkout root, for cachetracker bookkeeping
	lockDir string

	mu  sync.Mutex
	pkg *pkgid.Package
	dir string
}

// NewGitSource creates a GitSource for the repository at gitURL,
// checked out at rev. dbDir/lockDir/tracker may be zero values to skip
// cache bookkeeping and locking (tests, or a caller that manages its
// own checkout directory).
func NewGitSource(gitURL, rev string, load Loader, tracker *cachetracker.Tracker, dbDir, lockDir string) (*GitSource, error) {
	if err := validateGitURL(gitURL); err != nil {
		return nil, fmt.Errorf("git source: %w", err)
	}
	return &GitSource{url: gitURL, rev: rev, load: load, tracker: tracker, dbDir: dbDir, lockDir: lockDir}, nil
}

func (s *GitSource) SourceID() pkgid.SourceId {
	return pkgid.SourceId{Kind: pkgid.SourceKindGit, URL: s.url, GitRef: s.rev}
}

// Update (re)materializes the checkout: clones if absent, fetches and
// resets to the resolved rev otherwise.
func (s *GitSource) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockDir != "" {
		lock, err := filelock.Acquire(s.lockDir+"/git.lock", filelock.DownloadExclusive, 0)
		if err != nil {
			return fmt.Errorf("git source %s: acquire checkout lock: %w", s.url, err)
		}
		defer lock.Release()
	}

	dir := s.dir
	if dir == "" {
		var err error
		dir, err = os.MkdirTemp("", "cargo-core-git-*")
		if err != nil {
			return fmt.Errorf("git source %s: create checkout dir: %w", s.url, err)
		}
		s.dir = dir
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		repo, err = git.PlainClone(dir, false, &git.CloneOptions{URL: s.url})
		if err != nil {
			return fmt.Errorf("git source %s: clone: %w", s.url, err)
		}
	} else {
		if err := repo.Fetch(&git.FetchOptions{Force: true}); err != nil && err != git.NoErrAlreadyUpToDate {
			return fmt.Errorf("git source %s: fetch: %w", s.url, err)
		}
	}

	sha, err := s.resolveRev(dir, s.rev)
	if err != nil {
		return fmt.Errorf("git source %s: resolve %s: %w", s.url, s.rev, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git source %s: worktree: %w", s.url, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: gitplumbing.NewHash(sha), Force: true}); err != nil {
		return fmt.Errorf("git source %s: checkout %s: %w", s.url, sha, err)
	}

	if s.tracker != nil {
		s.tracker.MarkUsed(cachetracker.KindGitCheckout, cachetracker.GitCheckoutKey(s.dbDir, sha))
	}

	pkg, err := s.load(dir)
	if err != nil {
		return fmt.Errorf("git source %s: load: %w", s.url, err)
	}
	s.pkg = &pkg
	return nil
}

// resolveRev shells out to `git rev-parse`, since go-git's own
// short-rev and symbolic-ref resolution does not cover every form
// (abbreviated SHAs, `HEAD~N`) the CLI accepts.
func (s *GitSource) resolveRev(dir, rev string) (string, error) {
	if rev == "" {
		rev = "HEAD"
	}
	cmd := exec.Command("git", "rev-parse", rev)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %s", rev, stderr.String())
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *GitSource) Query(dep pkgid.Dependency) ([]pkgid.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pkg == nil {
		return nil, ErrPending
	}
	if dep.Name != s.pkg.Summary.PackageId.Name {
		return nil, nil
	}
	if dep.Requirement != nil && !dep.Requirement(s.pkg.Summary.PackageId.Version) {
		return nil, nil
	}
	return []pkgid.Summary{s.pkg.Summary}, nil
}

func (s *GitSource) Download(id pkgid.PackageId) (MaybePackage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pkg == nil {
		return MaybePackage{}, ErrPending
	}
	if id != s.pkg.Summary.PackageId {
		return MaybePackage{}, fmt.Errorf("git source %s: no package %s", s.url, id)
	}
	pkg := *s.pkg
	return MaybePackage{Ready: &pkg}, nil
}

func (s *GitSource) FinishDownload(id pkgid.PackageId, descriptor string, data []byte) (pkgid.Package, error) {
	return pkgid.Package{}, fmt.Errorf("git source %s: FinishDownload is unreachable, Download is always Ready", s.url)
}

// Fingerprint reports the resolved commit SHA, the stability token for
// everything fetched at a pinned git rev.
func (s *GitSource) Fingerprint(pkg pkgid.Package) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return "", fmt.Errorf("git source %s: not yet updated", s.url)
	}
	return s.resolveRev(s.dir, "HEAD")
}

// Verify confirms the checkout is still clean (`git status --porcelain`
// reports nothing); it does not re-resolve HEAD. This mirrors the teacher's
// `git diff --name-status` driven change-detection idiom applied here
// to detect an unexpectedly dirty worktree.
func (s *GitSource) Verify(id pkgid.PackageId) error {
	s.mu.Lock()
	dir := s.dir
	s.mu.Unlock()
	if dir == "" {
		return fmt.Errorf("git source %s: not yet updated", s.url)
	}

	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("git source %s: status: %w", s.url, err)
	}
	if len(bytes.TrimSpace(out)) != 0 {
		return fmt.Errorf("git source %s: checkout at %s is dirty", s.url, dir)
	}
	return nil
}

// Cleanup removes the temporary checkout directory, if one was
// created by Update.
func (s *GitSource) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	return os.RemoveAll(dir)
}
