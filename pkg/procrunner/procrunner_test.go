package procrunner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/codeready-toolchain/kitt/pkg/procrunner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdoutLines(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	onLine := func(line string, stderr bool) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	}

	res, err := procrunner.Run(context.Background(), procrunner.Spec{
		Program: "printf",
		Args:    []string{"one\ntwo\nthree\n"},
	}, onLine)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"one", "two", "three"}, lines)
}

func TestRunRejectsBlockedFlags(t *testing.T) {
	_, err := procrunner.Run(context.Background(), procrunner.Spec{
		Program: "docker",
		Args:    []string{"run", "--privileged", "alpine"},
	}, nil)
	require.ErrorIs(t, err, procrunner.ErrBlockedFlag)
}

func TestValidateCatchesEveryBlockedPrefix(t *testing.T) {
	prefixes := []string{"--privileged", "--pid=host", "--cap-add=SYS_ADMIN", "--security-opt=seccomp=unconfined", "--device=/dev/kfd"}
	for _, arg := range prefixes {
		spec := procrunner.Spec{Program: "docker", Args: []string{"run", arg}}
		assert.ErrorIs(t, spec.Validate(), procrunner.ErrBlockedFlag, "arg %q should be blocked", arg)
	}
}

func TestRunPropagatesNonZeroExit(t *testing.T) {
	res, err := procrunner.Run(context.Background(), procrunner.Spec{
		Program: "sh",
		Args:    []string{"-c", "exit 7"},
	}, nil)
	require.Error(t, err)
	assert.Equal(t, 7, res.ExitCode)
}

func TestRunEnforcesTimeout(t *testing.T) {
	_, err := procrunner.Run(context.Background(), procrunner.Spec{
		Program: "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
	}, nil)
	require.Error(t, err)
}

func TestRunRespectsParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := procrunner.Run(ctx, procrunner.Spec{
		Program: "sleep",
		Args:    []string{"5"},
	}, nil)
	require.Error(t, err)
}

func TestRunPassesEnv(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	res, err := procrunner.Run(context.Background(), procrunner.Spec{
		Program: "sh",
		Args:    []string{"-c", "echo $KITT_TEST_VAR"},
		Env:     map[string]string{"KITT_TEST_VAR": "hello"},
	}, func(line string, stderr bool) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, []string{"hello"}, lines)
}
