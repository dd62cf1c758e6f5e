package configs

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/stretchr/testify/require"
)

func TestHasHook(t *testing.T) {
	cfg := &Config{}
	require.False(t, cfg.HasHook(Prestart))

	cfg.Hooks = Hooks{CreateRuntime: HookList{NewFunctionHook(func(*specs.State) error { return nil })}}
	require.True(t, cfg.HasHook(CreateRuntime))
	require.False(t, cfg.HasHook(Poststart))
	require.True(t, cfg.HasHook(Poststart, CreateRuntime))
}

func TestKnownHookNames(t *testing.T) {
	names := KnownHookNames()
	require.Contains(t, names, "prestart")
	require.Contains(t, names, "createRuntime")
	require.Contains(t, names, "poststop")
	require.Len(t, names, 6)
}

func TestFuncHookRun(t *testing.T) {
	called := false
	h := NewFunctionHook(func(s *specs.State) error {
		called = true
		require.Equal(t, "abc", s.ID)
		return nil
	})
	require.NoError(t, h.Run(&specs.State{ID: "abc"}))
	require.True(t, called)
}

func TestHooksRunStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	ran := 0
	hooks := Hooks{
		Prestart: HookList{
			NewFunctionHook(func(*specs.State) error { ran++; return nil }),
			NewFunctionHook(func(*specs.State) error { ran++; return boom }),
			NewFunctionHook(func(*specs.State) error { ran++; return nil }),
		},
	}
	err := hooks.Run(Prestart, &specs.State{})
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, ran)
}

func TestCommandHookRunSucceeds(t *testing.T) {
	cmd := NewCommandHook(&Command{Path: "/bin/true", Args: []string{"true"}})
	require.NoError(t, cmd.Run(&specs.State{ID: "x"}))
}

func TestCommandHookRunTimesOut(t *testing.T) {
	timeout := 10 * time.Millisecond
	cmd := NewCommandHook(&Command{Path: "/bin/sleep", Args: []string{"sleep", "5"}, Timeout: &timeout})
	err := cmd.Run(&specs.State{ID: "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "timeout")
}

func TestHooksUnmarshalJSON(t *testing.T) {
	raw := `{"prestart":[{"path":"/bin/true","args":["true"]}],"poststop":[]}`
	var hooks Hooks
	require.NoError(t, json.Unmarshal([]byte(raw), &hooks))
	require.Len(t, hooks[Prestart], 1)
	_, hasEmpty := hooks[Poststop]
	require.False(t, hasEmpty)
}

func TestHookListSetDefaultEnvFillsOnlyEmptyEnv(t *testing.T) {
	withEnv := CommandHook{Command: &Command{Path: "/bin/true", Env: []string{"ALREADY=set"}}}
	withoutEnv := CommandHook{Command: &Command{Path: "/bin/true"}}
	list := HookList{withEnv, withoutEnv}

	list.SetDefaultEnv([]string{"FOO=bar"})

	// CommandHook embeds *Command, so the mutation inside SetDefaultEnv
	// lands on the same underlying Command both the slice element and
	// these local variables point to.
	require.Equal(t, []string{"ALREADY=set"}, withEnv.Env)
	require.Equal(t, []string{"FOO=bar"}, withoutEnv.Env)
}
