package gittools

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runner executes git commands in a repository directory.
type runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// execRunner shells out to the git binary.
type execRunner struct {
	timeout time.Duration
}

func (r *execRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir

	out, err := cmd.CombinedOutput()
	output := strings.TrimRight(string(out), "\n")
	if err != nil {
		if output != "" {
			return "", fmt.Errorf("git %s: %s", args[0], output)
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return output, nil
}

// validateRepoPath rejects relative paths and, when roots are configured,
// paths outside every allowed root.
func validateRepoPath(repoPath string, allowedRoots []string) error {
	if repoPath == "" {
		return fmt.Errorf("repo_path is required")
	}
	if !filepath.IsAbs(repoPath) {
		return fmt.Errorf("repo_path must be absolute")
	}

	cleaned := filepath.Clean(repoPath)
	if len(allowedRoots) == 0 {
		return nil
	}
	for _, root := range allowedRoots {
		root = filepath.Clean(root)
		if cleaned == root || strings.HasPrefix(cleaned, root+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("repo_path %s is outside the allowed roots", repoPath)
}
