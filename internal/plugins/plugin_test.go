package plugins

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// stubBin writes an executable shell script named name onto a temp dir and
// prepends that dir to PATH for the duration of the test, so plugin Gather
// methods exercise real exec.CommandContext plumbing without depending on
// git/docker/npm/python3/cargo actually being installed on the test host.
func stubBin(t *testing.T, name, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub scripts are POSIX shell only")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRegistry_Active(t *testing.T) {
	git := NewGitPlugin(50*time.Millisecond, 40, GitDepthLight, 5)
	node := NewNodePlugin(50*time.Millisecond, 40)
	reg := NewRegistry(git, node)

	active := reg.Active("npm install", "/tmp", []string{"package.json"})
	require.Len(t, active, 1)
	assert.Equal(t, "node", active[0].Name())

	active = reg.Active("ls", "/tmp", []string{".git", "package.json"})
	assert.Len(t, active, 2)

	active = reg.Active("ls", "/tmp", []string{"README.md"})
	assert.Empty(t, active)
}

func TestGitPlugin_ShouldActivate(t *testing.T) {
	g := NewGitPlugin(50*time.Millisecond, 40, GitDepthLight, 5)
	assert.True(t, g.ShouldActivate("", "/repo", []string{".git", "main.go"}))
	assert.True(t, g.ShouldActivate("git status", "/repo", nil))
	assert.False(t, g.ShouldActivate("ls -la", "/repo", []string{"main.go"}))
}

func TestGitPlugin_Gather_NoRepo(t *testing.T) {
	stubBin(t, "git", "exit 128")
	g := NewGitPlugin(50*time.Millisecond, 40, GitDepthLight, 5)
	out := g.Gather(context.Background(), t.TempDir())
	assert.False(t, out.OK)
	assert.Equal(t, "git", out.Name)
}

func TestGitPlugin_Gather_Light(t *testing.T) {
	stubBin(t, "git", `
case "$2" in
  --abbrev-ref) echo "main" ;;
  --porcelain) echo " M file.go" ;;
esac
`)
	g := NewGitPlugin(time.Second, 40, GitDepthLight, 5)
	out := g.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "branch: main")
	assert.Contains(t, out.Text, "dirty_files: 1")
	assert.NotContains(t, out.Text, "staged:")
}

func TestGitPlugin_Gather_Detailed(t *testing.T) {
	stubBin(t, "git", `
if [ "$1" = "rev-parse" ]; then echo "main"; exit 0; fi
if [ "$1" = "status" ]; then echo "M  staged.go"; echo " M unstaged.go"; exit 0; fi
if [ "$1" = "log" ]; then echo "fix: a bug"; echo "feat: a thing"; exit 0; fi
`)
	g := NewGitPlugin(time.Second, 40, GitDepthDetailed, 2)
	out := g.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "staged: 1")
	assert.Contains(t, out.Text, "unstaged: 1")
	assert.Contains(t, out.Text, "recent_commits:")
}

func TestGitPlugin_Gather_DeadlineExceeded(t *testing.T) {
	stubBin(t, "git", "sleep 1")
	g := NewGitPlugin(10*time.Millisecond, 40, GitDepthLight, 5)
	out := g.Gather(context.Background(), t.TempDir())
	assert.False(t, out.OK)
}

func TestNodePlugin(t *testing.T) {
	p := NewNodePlugin(time.Second, 40)
	assert.True(t, p.ShouldActivate("", "/proj", []string{"package.json"}))
	assert.True(t, p.ShouldActivate("npm run build", "/proj", nil))
	assert.False(t, p.ShouldActivate("", "/proj", []string{"go.mod"}))

	stubBin(t, "npm", `echo 'name: "demo"'`)
	out := p.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "package.json")
}

func TestPythonPlugin(t *testing.T) {
	p := NewPythonPlugin(time.Second, 40)
	assert.True(t, p.ShouldActivate("", "/proj", []string{"pyproject.toml"}))
	assert.True(t, p.ShouldActivate("", "/proj", []string{"requirements-dev.txt"}))
	assert.True(t, p.ShouldActivate("python3 manage.py", "/proj", nil))
	assert.False(t, p.ShouldActivate("", "/proj", []string{"go.mod"}))

	stubBin(t, "python3", `echo "Python 3.11.4"`)
	out := p.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "3.11.4")
}

func TestRustPlugin_MetadataSucceeds(t *testing.T) {
	p := NewRustPlugin(time.Second, 40)
	assert.True(t, p.ShouldActivate("", "/proj", []string{"Cargo.toml"}))
	assert.True(t, p.ShouldActivate("cargo build", "/proj", nil))

	stubBin(t, "cargo", `echo '{"packages":[]}'`)
	out := p.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "cargo_metadata_bytes")
}

func TestRustPlugin_FallsBackToVersion(t *testing.T) {
	p := NewRustPlugin(time.Second, 40)
	stubBin(t, "cargo", `
if [ "$1" = "metadata" ]; then exit 1; fi
echo "cargo 1.79.0"
`)
	out := p.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.True(t, out.Truncated)
	assert.Contains(t, out.Text, "cargo 1.79.0")
}

func TestDockerPlugin(t *testing.T) {
	p := NewDockerPlugin(time.Second, 40)
	assert.True(t, p.ShouldActivate("", "/proj", []string{"Dockerfile"}))
	assert.True(t, p.ShouldActivate("docker compose up", "/proj", nil))

	stubBin(t, "docker", `echo "app	Up 2 hours"`)
	out := p.Gather(context.Background(), t.TempDir())
	require.True(t, out.OK)
	assert.Contains(t, out.Text, "running_containers: 1")
}

func TestRegistry_GatherAll_RecoversPanics(t *testing.T) {
	reg := NewRegistry()
	active := []Plugin{panicPlugin{}, okPlugin{}}
	outs := reg.GatherAll(context.Background(), t.TempDir(), active)
	require.Len(t, outs, 2)
	assert.False(t, outs[0].OK)
	assert.Equal(t, "panicky", outs[0].Name)
	assert.True(t, outs[1].OK)
}

type panicPlugin struct{}

func (panicPlugin) Name() string                                             { return "panicky" }
func (panicPlugin) Priority() int                                            { return 40 }
func (panicPlugin) ShouldActivate(buffer, cwd string, listing []string) bool { return true }
func (panicPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	panic("boom")
}

type okPlugin struct{}

func (okPlugin) Name() string                                             { return "ok" }
func (okPlugin) Priority() int                                            { return 40 }
func (okPlugin) ShouldActivate(buffer, cwd string, listing []string) bool { return true }
func (okPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	return protocol.PluginOutput{Name: "ok", OK: true, Text: "fine"}
}
