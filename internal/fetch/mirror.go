package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
	"golang.org/x/mod/sumdb/dirhash"

	"github.com/NeoGeographyToolkit/binarybuilder/internal/runner"
)

// MirrorExcludes are the rsync patterns left out of every mirror.
var MirrorExcludes = []string{"doc/*", "*/doc/*"}

// MirrorDir returns the local copy of the remote tree registered as name.
func (a *Acquirer) MirrorDir(name string) string {
	return filepath.Join(a.CacheDir, "rsync", name)
}

// Mirror incrementally synchronises remote into MirrorDir(name) and returns
// that directory. The tree hash of the result is recorded next to it in
// <dir>.treesum; when treeSum is non-empty the two must agree.
func (a *Acquirer) Mirror(ctx context.Context, remote, name, treeSum string) (string, error) {
	if a.Exec == nil {
		return "", errors.New("no command runner for rsync")
	}
	dir := a.MirrorDir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	args := []string{"-z", "-v"}
	for _, ex := range MirrorExcludes {
		args = append(args, "--exclude", ex)
	}
	if err := a.CopyTree(ctx, remote, dir+"/", CopyOptions{Delete: true, Args: args}); err != nil {
		return "", err
	}

	sum, err := TreeHash(dir)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", dir, err)
	}
	if err := renameio.WriteFile(dir+".treesum", []byte(sum+"\n"), 0o644); err != nil {
		return "", err
	}
	log := a.log().WithField("mirror", name).WithField("treesum", sum)
	if treeSum != "" && treeSum != sum {
		return "", &ChecksumError{File: dir, Algo: "h1", Want: treeSum, Got: sum}
	}
	if treeSum == "" {
		log.Info("mirror synchronised; no tree hash declared")
	} else {
		log.Info("mirror synchronised and verified")
	}
	return dir, nil
}

// TreeHash returns the dirhash "h1:" digest of the tree rooted at dir.
// Symbolic links contribute their target rather than the file they point to.
func TreeHash(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", err
	}
	return dirhash.Hash1(files, func(name string) (io.ReadCloser, error) {
		p := filepath.Join(dir, filepath.FromSlash(name))
		info, err := os.Lstat(p)
		if err != nil {
			return nil, err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(strings.NewReader("symlink:" + target)), nil
		}
		return os.Open(p)
	})
}

// CopyOptions tunes CopyTree.
type CopyOptions struct {
	LinkDest string   // hard-link unchanged files against this tree
	Delete   bool     // remove files in dst that are absent from src
	Args     []string // extra rsync arguments
}

// CopyTree copies src to dst with rsync -a. Trailing slashes carry rsync's
// usual meaning.
func (a *Acquirer) CopyTree(ctx context.Context, src, dst string, opts CopyOptions) error {
	return CopyTree(ctx, a.Exec, src, dst, opts)
}

// CopyTree copies src to dst with rsync -a through exec.
func CopyTree(ctx context.Context, exec runner.Executor, src, dst string, opts CopyOptions) error {
	args := []string{"rsync", "-a"}
	if opts.Delete {
		args = append(args, "--delete")
	}
	if opts.LinkDest != "" {
		args = append(args, "--link-dest="+opts.LinkDest)
	}
	args = append(args, opts.Args...)
	args = append(args, src, dst)
	_, err := exec.Run(ctx, runner.Cmd{Args: args})
	return err
}
