package sandbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/judgebox/model"
)

func TestLXCSandbox(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	newConfig := func(t *testing.T) LXCConfig {
		return LXCConfig{
			Template:     "judgebox",
			UseSudo:      true,
			AdminTimeout: 10 * time.Second,
			TempDir:      t.TempDir(),
		}
	}

	t.Run("CreatesUniquelyNamedContainer", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-ls -1": {stdout: "judgebox-aaaaaaaaaaaa\nother\n"},
			},
		}
		cfg := newConfig(t)

		sb, err := NewLXCSandbox(ctx, logger, cfg, WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		defer sb.Close()

		assert.True(t, strings.HasPrefix(sb.Name(), "judgebox-"))
		assert.NotEqual(t, "judgebox-aaaaaaaaaaaa", sb.Name())

		lines := mockRunner.commandLines()
		require.Len(t, lines, 2)
		assert.Equal(t, "sudo lxc-ls -1", lines[0])
		assert.Equal(t, "sudo lxc-create -t judgebox -n "+sb.Name()+" --dir "+sb.root, lines[1])
		assert.True(t, strings.HasPrefix(sb.root, cfg.TempDir))

		info, err := os.Stat(filepath.Join(sb.root, "judgebox", "submission"))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("UnpackWritesIntoRootFilesystem", func(t *testing.T) {
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(&MockCommandRunner{}))
		require.NoError(t, err)
		defer sb.Close()

		dir, err := sb.Unpack([]model.SubmissionFile{{Filename: "Hello.java", Contents: []byte("class Hello {}")}})
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(dir, "/judgebox/submission/"))

		data, err := os.ReadFile(filepath.Join(sb.root, filepath.FromSlash(dir), "Hello.java"))
		require.NoError(t, err)
		assert.Equal(t, "class Hello {}", string(data))

		in1, err := sb.UnpackInput([]byte("1"))
		require.NoError(t, err)
		in2, err := sb.UnpackInput([]byte("2"))
		require.NoError(t, err)
		assert.NotEqual(t, in1, in2)
		assert.True(t, strings.HasPrefix(in1, "/judgebox/input/"))
	})

	t.Run("ExecuteWrapsCommand", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-execute": {stdout: "10\n", stderr: "12\n"},
			},
		}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		defer sb.Close()

		res, err := sb.Execute(ctx, []string{"sh", "-c", "java Main"}, []byte("5\n"), 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "10\n", string(res.Stdout))
		assert.Equal(t, "12\n", string(res.Stderr))

		lines := mockRunner.commandLines()
		assert.Equal(t, "sudo lxc-execute -n "+sb.Name()+" -- sh -c java Main", lines[len(lines)-1])
		assert.Equal(t, []byte("5\n"), mockRunner.stdins[len(mockRunner.stdins)-1])
	})

	t.Run("ExecutePropagatesTimeout", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-execute": {exitCode: -1, err: ErrTimeout},
			},
		}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		defer sb.Close()

		_, err = sb.Execute(ctx, []string{"sleep", "10"}, nil, time.Second)
		require.ErrorIs(t, err, ErrTimeout)

		lines := mockRunner.commandLines()
		assert.Equal(t, "sudo lxc-stop -k -n "+sb.Name(), lines[len(lines)-1])
	})

	t.Run("CompletedExecutionIsNotStopped", func(t *testing.T) {
		mockRunner := &MockCommandRunner{}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		defer sb.Close()

		_, err = sb.Execute(ctx, []string{"true"}, nil, time.Second)
		require.NoError(t, err)
		assert.Zero(t, mockRunner.countPrefix("sudo lxc-stop"))
	})

	t.Run("WithoutSudo", func(t *testing.T) {
		mockRunner := &MockCommandRunner{}
		cfg := newConfig(t)
		cfg.UseSudo = false

		sb, err := NewLXCSandbox(ctx, logger, cfg, WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		require.NoError(t, sb.Close())

		for _, line := range mockRunner.commandLines() {
			assert.False(t, strings.HasPrefix(line, "sudo"), line)
		}
	})

	t.Run("CloseIsIdempotent", func(t *testing.T) {
		mockRunner := &MockCommandRunner{}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)
		_, err = sb.Unpack([]model.SubmissionFile{{Filename: "Main.java", Contents: []byte("x")}})
		require.NoError(t, err)

		require.NoError(t, sb.Close())
		require.NoError(t, sb.Close())

		assert.Equal(t, 1, mockRunner.countPrefix("sudo lxc-destroy -f -n "+sb.Name()))
		_, statErr := os.Stat(sb.root)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("CloseToleratesMissingContainer", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-destroy": {exitCode: 1, stderr: "container does not exist"},
			},
		}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)

		assert.NoError(t, sb.Close())
	})

	t.Run("CloseReportsFailedDestroy", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-destroy": {exitCode: 1, stderr: "busy"},
			},
		}
		sb, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.NoError(t, err)

		// The container is still listed after the failed destroy.
		mockRunner.mu.Lock()
		mockRunner.commandResults["sudo lxc-ls -1"] = mockResult{stdout: sb.Name() + "\n"}
		mockRunner.mu.Unlock()

		err = sb.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to destroy container")

		// The root filesystem is removed regardless.
		_, statErr := os.Stat(sb.root)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("CreateFailureCleansUp", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-create": {exitCode: 1, stderr: "template not found"},
			},
		}
		cfg := newConfig(t)

		_, err := NewLXCSandbox(ctx, logger, cfg, WithLXCCommandRunner(mockRunner))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "template not found")

		entries, err := os.ReadDir(cfg.TempDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("ListFailure", func(t *testing.T) {
		mockRunner := &MockCommandRunner{
			commandResults: map[string]mockResult{
				"sudo lxc-ls": {err: errors.New("sudo: not found")},
			},
		}

		_, err := NewLXCSandbox(ctx, logger, newConfig(t), WithLXCCommandRunner(mockRunner))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to list containers")
	})
}

func TestGenerateName(t *testing.T) {
	name, err := generateName(nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, containerNamePrefix))
	assert.Len(t, name, len(containerNamePrefix)+12)

	other, err := generateName([]string{name})
	require.NoError(t, err)
	assert.NotEqual(t, name, other)
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitLines([]byte("a\n\n  b  \n")))
	assert.Nil(t, splitLines([]byte("\n")))
}
