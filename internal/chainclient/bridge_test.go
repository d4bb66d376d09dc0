package chainclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"dwagent/internal/money"
)

func classifyTestChains(chainTag string) (chainFamily, bool) {
	switch chainTag {
	case "ethereum":
		return familyEVM, true
	case "sui":
		return familySui, true
	case "custodial-usdc":
		return familyCustodial, true
	default:
		return 0, false
	}
}

func TestRouterRejectsUnknownChain(t *testing.T) {
	r, err := NewRouter(RouterConfig{Classify: classifyTestChains})
	require.NoError(t, err)

	_, err = r.Route(context.Background(), KeyHandle{DocID: "doc-1"}, "ethereum", "unknown-chain", "0xdead", money.FromInt64(1))
	require.Error(t, err)
}

func TestRouterRejectsSameFamily(t *testing.T) {
	r, err := NewRouter(RouterConfig{Classify: classifyTestChains})
	require.NoError(t, err)

	_, err = r.Route(context.Background(), KeyHandle{DocID: "doc-1"}, "ethereum", "ethereum", "0xdead", money.FromInt64(1))
	require.Error(t, err)
}

func TestRouterRequiresClassifier(t *testing.T) {
	_, err := NewRouter(RouterConfig{})
	require.Error(t, err)
}

func TestRouterMissingCustodialRail(t *testing.T) {
	r, err := NewRouter(RouterConfig{Classify: classifyTestChains})
	require.NoError(t, err)

	_, err = r.Route(context.Background(), KeyHandle{DocID: "doc-1"}, "ethereum", "sui", "0xdead", money.FromInt64(1))
	require.Error(t, err)
}
