package chainclient

import (
	"context"
	"fmt"

	"dwagent/internal/money"
)

// chainFamily classifies a chain tag into one of the three families the
// bridge router switches on.
type chainFamily int

const (
	familyEVM chainFamily = iota
	familySui
	familyCustodial
)

// FamilyClassifier maps a chain tag (e.g. "ethereum", "sui", "custodial-usdc")
// to its chain family. Deployments register their own chain tags; the
// router never hardcodes a specific chain name.
type FamilyClassifier func(chainTag string) (chainFamily, bool)

// Router implements BridgeRouter: not a transport itself, it classifies
// both chain tags into families and sends every cross-family route through
// the custodial client. The EVM and Sui clients are held but not used for
// routing.
type Router struct {
	classify   FamilyClassifier
	evm        EvmClient
	sui        SuiClient
	custodial  CustodialStableClient
	evmWallet  string // ERC-20 stablecoin contract address; stored but not read by Route
}

// RouterConfig wires the three underlying clients into a Router.
type RouterConfig struct {
	Classify      FamilyClassifier
	Evm           EvmClient
	Sui           SuiClient
	Custodial     CustodialStableClient
	EvmStableAddr string
}

// NewTagClassifier builds a FamilyClassifier from the deployment's own
// chain-tag vocabulary, since chainFamily is unexported and callers
// outside this package can only reach it through a constructor like this.
func NewTagClassifier(evmTags, suiTags, custodialTags []string) FamilyClassifier {
	families := make(map[string]chainFamily, len(evmTags)+len(suiTags)+len(custodialTags))
	for _, tag := range evmTags {
		families[tag] = familyEVM
	}
	for _, tag := range suiTags {
		families[tag] = familySui
	}
	for _, tag := range custodialTags {
		families[tag] = familyCustodial
	}
	return func(chainTag string) (chainFamily, bool) {
		f, ok := families[chainTag]
		return f, ok
	}
}

// NewRouter constructs a BridgeRouter from the three chain-family clients.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Classify == nil {
		return nil, fmt.Errorf("chainclient: chain family classifier required")
	}
	return &Router{
		classify:  cfg.Classify,
		evm:       cfg.Evm,
		sui:       cfg.Sui,
		custodial: cfg.Custodial,
		evmWallet: cfg.EvmStableAddr,
	}, nil
}

// Route moves amount from fromChain to toChain via the custodial rail,
// the only leg capable of bridging across all three families since the
// other two clients never talk to each other directly.
func (r *Router) Route(ctx context.Context, key KeyHandle, fromChain, toChain, to string, amount money.Amount) (PayoutResult, error) {
	fromFamily, ok := r.classify(fromChain)
	if !ok {
		return PayoutResult{}, fmt.Errorf("chainclient: unknown source chain family %q", fromChain)
	}
	toFamily, ok := r.classify(toChain)
	if !ok {
		return PayoutResult{}, fmt.Errorf("chainclient: unknown destination chain family %q", toChain)
	}
	if fromFamily == toFamily {
		return PayoutResult{}, fmt.Errorf("chainclient: source and destination resolve to the same chain family")
	}
	if r.custodial == nil {
		return PayoutResult{}, fmt.Errorf("chainclient: no custodial rail configured for cross-family bridging")
	}
	walletID, _, err := r.custodial.EnsureWallet(ctx, key.DocID)
	if err != nil {
		return PayoutResult{}, fmt.Errorf("chainclient: ensure bridge wallet: %w", err)
	}
	return r.custodial.Bridge(ctx, walletID, toChain, to, amount)
}

var _ BridgeRouter = (*Router)(nil)
