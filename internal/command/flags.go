package command

// FeatureFlags lets a deployment enable or disable grammar variants. The
// source corpus interleaves a BCH-only grammar with the multi-chain one;
// the superset is canonical and flags gate the parts a given deployment
// does not want.
type FeatureFlags struct {
	// BCHVariants enables BCH_SEND / BCH_TOKEN_* style commands alongside
	// the multi-chain grammar. Off by default.
	BCHVariants bool
}

// DefaultFlags enables the multi-chain grammar the chain-client
// interfaces are built against, and disables the legacy BCH-only subset.
func DefaultFlags() FeatureFlags {
	return FeatureFlags{BCHVariants: false}
}
