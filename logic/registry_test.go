package logic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/x2ee/c3/logic"
)

func TestParseRefBareModule(t *testing.T) {
	module, symbol, err := logic.ParseRef("pkg.mod")
	require.NoError(t, err)
	assert.Equal(t, "pkg.mod", module)
	assert.Equal(t, "", symbol)
}

func TestParseRefRejectsMultiColon(t *testing.T) {
	_, _, err := logic.ParseRef("a:b:c")
	assert.Error(t, err)
}

func TestParseRefRejectsEmpty(t *testing.T) {
	_, _, err := logic.ParseRef("")
	assert.Error(t, err)
}

func TestResolveFunctionRejectsExtraKeys(t *testing.T) {
	r := logic.NewRegistry()
	require.NoError(t, r.Register("pkg.mod:free_fn", logic.Registration{
		IsClass: false,
		Build: func(remaining map[string]any) (logic.Handler, error) {
			return logic.Handler{Kind: logic.Sync, Call: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, nil
			}}, nil
		},
	}))

	_, err := r.Resolve(map[string]any{"ref$": "pkg.mod:free_fn", "a": 3}, "")
	require.Error(t, err)
	assert.Equal(t, "Unexpected entries {'a': 3}", err.Error())
}

func TestResolveClassPassesRemainingAsConstructorArgs(t *testing.T) {
	r := logic.NewRegistry()
	require.NoError(t, r.Register("pkg.mod:Handler", logic.Registration{
		IsClass: true,
		Build: func(remaining map[string]any) (logic.Handler, error) {
			n, _ := remaining["n"].(int)
			return logic.Handler{Kind: logic.Async, Call: func(ctx context.Context, args map[string]any) (any, error) {
				return n, nil
			}}, nil
		},
	}))

	h, err := r.Resolve(map[string]any{"ref$": "pkg.mod:Handler", "n": 7}, "")
	require.NoError(t, err)
	assert.Equal(t, logic.Async, h.Kind)

	out, err := h.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestResolveUnknownRef(t *testing.T) {
	r := logic.NewRegistry()
	_, err := r.Resolve(map[string]any{"ref$": "nope:nothing"}, "")
	assert.ErrorIs(t, err, logic.ErrUnknownRef)
}

func TestResolveUsesDefaultRefWhenAbsent(t *testing.T) {
	r := logic.NewRegistry()
	require.NoError(t, r.Register("pkg.mod:default_fn", logic.Registration{
		Build: func(remaining map[string]any) (logic.Handler, error) {
			return logic.Handler{Kind: logic.Sync, Call: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }}, nil
		},
	}))

	_, err := r.Resolve(map[string]any{}, "pkg.mod:default_fn")
	require.NoError(t, err)
}

func TestResolveNoRefNoDefault(t *testing.T) {
	r := logic.NewRegistry()
	_, err := r.Resolve(map[string]any{}, "")
	assert.ErrorIs(t, err, logic.ErrNoRef)
}
