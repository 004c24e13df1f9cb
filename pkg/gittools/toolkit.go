// Package gittools provides git repository tools for the MCP server. Each
// tool shells out to the git binary scoped to a caller-supplied repository
// path, optionally restricted to configured root directories.
package gittools

import (
	"context"
	"fmt"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Toolkit exposes git operations as MCP tools.
type Toolkit struct {
	name   string
	config Config
	git    runner
}

// New creates a new git toolkit.
func New(name string, cfg Config) *Toolkit {
	cfg = applyDefaults(cfg)
	return &Toolkit{
		name:   name,
		config: cfg,
		git:    &execRunner{timeout: cfg.Timeout},
	}
}

// Kind returns the toolkit kind.
func (*Toolkit) Kind() string {
	return "git"
}

// Name returns the toolkit instance name.
func (t *Toolkit) Name() string {
	return t.name
}

// Close releases resources.
func (*Toolkit) Close() error {
	return nil
}

// Tools returns the list of tool names provided by this toolkit.
func (t *Toolkit) Tools() []string {
	tools := []string{
		"git_status",
		"git_diff_unstaged",
		"git_diff_staged",
		"git_diff",
		"git_log",
		"git_show",
		"git_branch_list",
	}
	if !t.config.ReadOnly {
		tools = append(tools,
			"git_add",
			"git_reset",
			"git_commit",
			"git_create_branch",
			"git_checkout",
			"git_init",
		)
	}
	return tools
}

// RegisterTools registers git tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_status",
		Description: "Show the working tree status of a git repository.",
	}, t.handleStatus)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_diff_unstaged",
		Description: "Show unstaged changes in the working tree.",
	}, t.handleDiffUnstaged)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_diff_staged",
		Description: "Show changes staged for the next commit.",
	}, t.handleDiffStaged)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_diff",
		Description: "Show changes between the working tree and a target ref.",
	}, t.handleDiff)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_log",
		Description: "Show recent commit history.",
	}, t.handleLog)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_show",
		Description: "Show the contents of a commit.",
	}, t.handleShow)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_branch_list",
		Description: "List local branches.",
	}, t.handleBranchList)

	if t.config.ReadOnly {
		return
	}

	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_add",
		Description: "Stage files for the next commit.",
	}, t.handleAdd)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_reset",
		Description: "Unstage all staged changes.",
	}, t.handleReset)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_commit",
		Description: "Commit staged changes with a message.",
	}, t.handleCommit)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_create_branch",
		Description: "Create a new branch, optionally from a base ref.",
	}, t.handleCreateBranch)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_checkout",
		Description: "Switch to an existing branch.",
	}, t.handleCheckout)
	mcp.AddTool(s, &mcp.Tool{
		Name:        "git_init",
		Description: "Initialize a new git repository.",
	}, t.handleInit)
}

type repoInput struct {
	RepoPath string `json:"repo_path"`
}

type statusInput struct {
	RepoPath  string `json:"repo_path"`
	Porcelain bool   `json:"porcelain,omitempty"`
}

type diffInput struct {
	RepoPath string `json:"repo_path"`
	Target   string `json:"target"`
}

type logInput struct {
	RepoPath string `json:"repo_path"`
	MaxCount int    `json:"max_count,omitempty"`
	Oneline  bool   `json:"oneline,omitempty"`
}

type showInput struct {
	RepoPath string `json:"repo_path"`
	Revision string `json:"revision"`
}

type addInput struct {
	RepoPath string   `json:"repo_path"`
	Files    []string `json:"files"`
}

type commitInput struct {
	RepoPath string `json:"repo_path"`
	Message  string `json:"message"`
}

type branchInput struct {
	RepoPath   string `json:"repo_path"`
	BranchName string `json:"branch_name"`
	BaseBranch string `json:"base_branch,omitempty"`
}

func (t *Toolkit) handleStatus(ctx context.Context, _ *mcp.CallToolRequest, input statusInput) (*mcp.CallToolResult, any, error) {
	args := []string{"status"}
	if input.Porcelain {
		args = append(args, "--porcelain")
	}
	return t.run(ctx, input.RepoPath, args...)
}

func (t *Toolkit) handleDiffUnstaged(ctx context.Context, _ *mcp.CallToolRequest, input repoInput) (*mcp.CallToolResult, any, error) {
	return t.run(ctx, input.RepoPath, "diff")
}

func (t *Toolkit) handleDiffStaged(ctx context.Context, _ *mcp.CallToolRequest, input repoInput) (*mcp.CallToolResult, any, error) {
	return t.run(ctx, input.RepoPath, "diff", "--cached")
}

func (t *Toolkit) handleDiff(ctx context.Context, _ *mcp.CallToolRequest, input diffInput) (*mcp.CallToolResult, any, error) {
	if input.Target == "" {
		return errorResult("target is required"), nil, nil
	}
	return t.run(ctx, input.RepoPath, "diff", input.Target)
}

func (t *Toolkit) handleLog(ctx context.Context, _ *mcp.CallToolRequest, input logInput) (*mcp.CallToolResult, any, error) {
	count := input.MaxCount
	if count <= 0 || count > t.config.MaxLogCount {
		count = t.config.MaxLogCount
	}
	args := []string{"log", "--max-count", strconv.Itoa(count)}
	if input.Oneline {
		args = append(args, "--oneline")
	}
	return t.run(ctx, input.RepoPath, args...)
}

func (t *Toolkit) handleShow(ctx context.Context, _ *mcp.CallToolRequest, input showInput) (*mcp.CallToolResult, any, error) {
	if input.Revision == "" {
		return errorResult("revision is required"), nil, nil
	}
	return t.run(ctx, input.RepoPath, "show", input.Revision)
}

func (t *Toolkit) handleBranchList(ctx context.Context, _ *mcp.CallToolRequest, input repoInput) (*mcp.CallToolResult, any, error) {
	return t.run(ctx, input.RepoPath, "branch", "--list")
}

func (t *Toolkit) handleAdd(ctx context.Context, _ *mcp.CallToolRequest, input addInput) (*mcp.CallToolResult, any, error) {
	if len(input.Files) == 0 {
		return errorResult("files is required"), nil, nil
	}
	args := append([]string{"add", "--"}, input.Files...)
	return t.run(ctx, input.RepoPath, args...)
}

func (t *Toolkit) handleReset(ctx context.Context, _ *mcp.CallToolRequest, input repoInput) (*mcp.CallToolResult, any, error) {
	return t.run(ctx, input.RepoPath, "reset")
}

func (t *Toolkit) handleCommit(ctx context.Context, _ *mcp.CallToolRequest, input commitInput) (*mcp.CallToolResult, any, error) {
	if input.Message == "" {
		return errorResult("message is required"), nil, nil
	}
	result, _, err := t.run(ctx, input.RepoPath, "commit", "-m", input.Message)
	if err != nil || result.IsError {
		return result, nil, err
	}

	hash, hashErr := t.git.Run(ctx, input.RepoPath, "rev-parse", "--short", "HEAD")
	if hashErr != nil {
		return result, nil, nil
	}
	return textResult(fmt.Sprintf("commit %s created", hash)), nil, nil
}

func (t *Toolkit) handleCreateBranch(ctx context.Context, _ *mcp.CallToolRequest, input branchInput) (*mcp.CallToolResult, any, error) {
	if input.BranchName == "" {
		return errorResult("branch_name is required"), nil, nil
	}
	args := []string{"branch", input.BranchName}
	if input.BaseBranch != "" {
		args = append(args, input.BaseBranch)
	}
	return t.run(ctx, input.RepoPath, args...)
}

func (t *Toolkit) handleCheckout(ctx context.Context, _ *mcp.CallToolRequest, input branchInput) (*mcp.CallToolResult, any, error) {
	if input.BranchName == "" {
		return errorResult("branch_name is required"), nil, nil
	}
	return t.run(ctx, input.RepoPath, "checkout", input.BranchName)
}

func (t *Toolkit) handleInit(ctx context.Context, _ *mcp.CallToolRequest, input repoInput) (*mcp.CallToolResult, any, error) {
	return t.run(ctx, input.RepoPath, "init")
}

// run validates the repository path, executes git, and wraps the outcome as
// a tool result. Command failures become error results, not handler errors.
func (t *Toolkit) run(ctx context.Context, repoPath string, args ...string) (*mcp.CallToolResult, any, error) {
	if err := validateRepoPath(repoPath, t.config.AllowedRoots); err != nil {
		return errorResult(err.Error()), nil, nil
	}

	out, err := t.git.Run(ctx, repoPath, args...)
	if err != nil {
		return errorResult(err.Error()), nil, nil
	}
	if out == "" {
		out = "(no output)"
	}
	return textResult(out), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
