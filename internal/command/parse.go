package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcutil/bech32"

	"dwagent/internal/money"
)

// prefix is the literal, case-sensitive token a document line must start
// with to be treated as a formal command.
const prefix = "DW"

// Parse maps a raw text line to a tagged Command using the default feature
// flags. It is deterministic and side-effect free.
func Parse(raw string) (Command, error) {
	return ParseWithFlags(raw, DefaultFlags())
}

// ParseWithFlags is Parse parameterised by per-deployment grammar flags.
func ParseWithFlags(raw string, flags FeatureFlags) (Command, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrEmptyCommand
	}

	fields := strings.Fields(trimmed)
	if fields[0] == prefix {
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
		return parseInner(rest, flags)
	}

	cmd, ok := autoDetect(trimmed)
	if !ok {
		return nil, fmt.Errorf("Unknown command: %s", fields[0])
	}
	return cmd, nil
}

// parseInner parses the command body (everything after "DW "), also used
// recursively by SCHEDULE for its inner command, which is written without
// the DW prefix.
func parseInner(rest string, flags FeatureFlags) (Command, error) {
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return nil, fmt.Errorf("Unknown command: %s", rest)
	}
	verbParts := strings.SplitN(rest, " ", 2)
	verb := verbParts[0]
	var argsStr string
	if len(verbParts) > 1 {
		argsStr = strings.TrimSpace(verbParts[1])
	}
	args := strings.Fields(argsStr)

	switch verb {
	case "SETUP", "/setup":
		return Setup{}, nil
	case "STATUS":
		return Status{}, nil
	case "QUORUM":
		n, err := parsePositiveInt(arg(args, 0))
		if err != nil {
			return nil, fmt.Errorf("QUORUM: %w", err)
		}
		return Quorum{N: n}, nil
	case "SIGNER_ADD":
		if len(args) < 3 || args[1] != "WEIGHT" {
			return nil, fmt.Errorf("SIGNER_ADD: expected <addr> WEIGHT <n>")
		}
		addr, err := validateAddress(args[0])
		if err != nil {
			return nil, fmt.Errorf("SIGNER_ADD: %w", err)
		}
		weight, err := parsePositiveInt(args[2])
		if err != nil {
			return nil, fmt.Errorf("SIGNER_ADD: %w", err)
		}
		return SignerAdd{Address: addr, Weight: weight}, nil
	case "SESSION_CREATE":
		return SessionCreate{}, nil
	case "SESSION_STATUS":
		return SessionStatus{}, nil
	case "SESSION_CLOSE":
		return SessionClose{}, nil
	case "YELLOW_SEND":
		if len(args) < 4 || args[2] != "TO" {
			return nil, fmt.Errorf("YELLOW_SEND: expected <amount> <asset> TO <addr>")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("YELLOW_SEND: %w", err)
		}
		asset, err := validateAsset(args[1])
		if err != nil {
			return nil, fmt.Errorf("YELLOW_SEND: %w", err)
		}
		to, err := validateAddress(args[3])
		if err != nil {
			return nil, fmt.Errorf("YELLOW_SEND: %w", err)
		}
		return YellowSend{Amount: amount, Asset: asset, To: to}, nil
	case "LIMIT_BUY", "LIMIT_SELL":
		if len(args) < 5 || args[3] != "@" {
			return nil, fmt.Errorf("%s: expected <base> <qty> <quote> @ <price>", verb)
		}
		qty, err := parseAmount(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		price, err := parseAmount(args[4])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		base, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		quote, err := validateAsset(args[2])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		if verb == "LIMIT_BUY" {
			return LimitBuy{Base: base, Qty: qty, Quote: quote, Price: price}, nil
		}
		return LimitSell{Base: base, Qty: qty, Quote: quote, Price: price}, nil
	case "MARKET_BUY", "MARKET_SELL":
		if len(args) < 2 {
			return nil, fmt.Errorf("%s: expected <base> <qty>", verb)
		}
		qty, err := parseAmount(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		base, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		if verb == "MARKET_BUY" {
			return MarketBuy{Base: base, Qty: qty}, nil
		}
		return MarketSell{Base: base, Qty: qty}, nil
	case "CANCEL", "CANCEL_ORDER":
		id, err := validateIdentifier(arg(args, 0), "orderId")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		return Cancel{OrderID: id}, nil
	case "SETTLE":
		return Settle{}, nil
	case "DEPOSIT", "WITHDRAW":
		if len(args) < 2 {
			return nil, fmt.Errorf("%s: expected <asset> <qty>", verb)
		}
		qty, err := parseAmount(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		asset, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		if verb == "DEPOSIT" {
			return Deposit{Asset: asset, Qty: qty}, nil
		}
		return Withdraw{Asset: asset, Qty: qty}, nil
	case "PRICE":
		return Price{}, nil
	case "TRADE_HISTORY":
		return TradeHistory{}, nil
	case "STOP_LOSS", "TAKE_PROFIT":
		if len(args) < 4 || args[2] != "@" {
			return nil, fmt.Errorf("%s: expected <asset> <qty> @ <trigger>", verb)
		}
		qty, err := parseAmount(args[1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		trigger, err := parseAmount(args[3])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		asset, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", verb, err)
		}
		if verb == "STOP_LOSS" {
			return StopLoss{Asset: asset, Qty: qty, Trigger: trigger}, nil
		}
		return TakeProfit{Asset: asset, Qty: qty, Trigger: trigger}, nil
	case "PAYOUT":
		if len(args) < 4 || args[1] != "USDC" || args[2] != "TO" {
			return nil, fmt.Errorf("PAYOUT: expected <amount> USDC TO <addr>")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("PAYOUT: %w", err)
		}
		to, err := validateAddress(args[3])
		if err != nil {
			return nil, fmt.Errorf("PAYOUT: %w", err)
		}
		return Payout{Amount: amount, Asset: "USDC", To: to}, nil
	case "PAYOUT_SPLIT":
		if len(args) < 4 || args[1] != "USDC" || args[2] != "TO" {
			return nil, fmt.Errorf("PAYOUT_SPLIT: expected <amount> USDC TO <addr>:<pct>,...")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("PAYOUT_SPLIT: %w", err)
		}
		splits, err := parsePayoutSplits(strings.Join(args[3:], ""))
		if err != nil {
			return nil, fmt.Errorf("PAYOUT_SPLIT: %w", err)
		}
		return PayoutSplit{Amount: amount, Asset: "USDC", Splits: splits}, nil
	case "BRIDGE":
		if len(args) < 6 || args[1] != "USDC" || args[2] != "FROM" || args[4] != "TO" {
			return nil, fmt.Errorf("BRIDGE: expected <amount> USDC FROM <chain> TO <chain>")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("BRIDGE: %w", err)
		}
		from, err := validateChain(args[3])
		if err != nil {
			return nil, fmt.Errorf("BRIDGE: %w", err)
		}
		to, err := validateChain(args[5])
		if err != nil {
			return nil, fmt.Errorf("BRIDGE: %w", err)
		}
		if from == to {
			return nil, ErrBridgeSameChain
		}
		return Bridge{Amount: amount, Asset: "USDC", FromChain: from, ToChain: to}, nil
	case "TREASURY":
		return Treasury{}, nil
	case "REBALANCE":
		if len(args) < 5 || args[1] != "FROM" || args[3] != "TO" {
			return nil, fmt.Errorf("REBALANCE: expected <amount> FROM <chain> TO <chain>")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("REBALANCE: %w", err)
		}
		from, err := validateChain(args[2])
		if err != nil {
			return nil, fmt.Errorf("REBALANCE: %w", err)
		}
		to, err := validateChain(args[4])
		if err != nil {
			return nil, fmt.Errorf("REBALANCE: %w", err)
		}
		if from == to {
			return nil, ErrBridgeSameChain
		}
		return Rebalance{Amount: amount, FromChain: from, ToChain: to}, nil
	case "SWEEP_YIELD":
		return SweepYield{}, nil
	case "POLICY":
		if len(args) < 2 || args[0] != "ENS" {
			return nil, fmt.Errorf("POLICY: expected ENS <name>")
		}
		name, err := validateIdentifier(args[1], "ENS name")
		if err != nil {
			return nil, fmt.Errorf("POLICY: %w", err)
		}
		return PolicyENS{Name: name}, nil
	case "CONNECT":
		uri := arg(args, 0)
		if !strings.HasPrefix(uri, "wc:") {
			return nil, fmt.Errorf("CONNECT: expected a wc: uri")
		}
		return Connect{URI: uri}, nil
	case "TX":
		if argsStr == "" {
			return nil, fmt.Errorf("TX: expected a json payload")
		}
		return Tx{JSON: argsStr}, nil
	case "SIGN":
		if argsStr == "" {
			return nil, fmt.Errorf("SIGN: expected a json payload")
		}
		return Sign{JSON: argsStr}, nil
	case "SCHEDULE":
		return parseSchedule(args, flags)
	case "CANCEL_SCHEDULE":
		id, err := validateIdentifier(arg(args, 0), "scheduleId")
		if err != nil {
			return nil, fmt.Errorf("CANCEL_SCHEDULE: %w", err)
		}
		return CancelSchedule{ScheduleID: id}, nil
	case "AUTO_REBALANCE":
		switch arg(args, 0) {
		case "ON":
			return AutoRebalance{On: true}, nil
		case "OFF":
			return AutoRebalance{On: false}, nil
		default:
			return nil, fmt.Errorf("AUTO_REBALANCE: expected ON or OFF")
		}
	case "ALERT":
		if len(args) < 3 || args[1] != "BELOW" {
			return nil, fmt.Errorf("ALERT: expected <asset> BELOW <amount>")
		}
		below, err := parseAmount(args[2])
		if err != nil {
			return nil, fmt.Errorf("ALERT: %w", err)
		}
		asset, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("ALERT: %w", err)
		}
		return Alert{Asset: asset, Below: below}, nil
	case "ALERT_THRESHOLD":
		if len(args) < 2 {
			return nil, fmt.Errorf("ALERT_THRESHOLD: expected <asset> <amount>")
		}
		amt, err := parseAmount(args[1])
		if err != nil {
			return nil, fmt.Errorf("ALERT_THRESHOLD: %w", err)
		}
		asset, err := validateAsset(args[0])
		if err != nil {
			return nil, fmt.Errorf("ALERT_THRESHOLD: %w", err)
		}
		return AlertThreshold{Asset: asset, Amount: amt}, nil
	case "BCH_SEND":
		if !flags.BCHVariants {
			return nil, fmt.Errorf("Unknown command: %s", verb)
		}
		if len(args) < 3 || args[1] != "TO" {
			return nil, fmt.Errorf("BCH_SEND: expected <amount> TO <addr>")
		}
		amount, err := parseAmount(args[0])
		if err != nil {
			return nil, fmt.Errorf("BCH_SEND: %w", err)
		}
		to, err := validateAddress(args[2])
		if err != nil {
			return nil, fmt.Errorf("BCH_SEND: %w", err)
		}
		return BchSend{Amount: amount, To: to}, nil
	default:
		return nil, fmt.Errorf("Unknown command: %s", verb)
	}
}

// parseSchedule parses "EVERY <n>h: <inner>" after the SCHEDULE verb has
// already been consumed.
func parseSchedule(args []string, flags FeatureFlags) (Command, error) {
	if len(args) < 2 || args[0] != "EVERY" {
		return nil, fmt.Errorf("SCHEDULE: expected EVERY <n>h: <inner-command>")
	}
	intervalToken := args[1]
	if !strings.HasSuffix(intervalToken, "h:") {
		return nil, fmt.Errorf("SCHEDULE: expected EVERY <n>h: <inner-command>")
	}
	hoursStr := strings.TrimSuffix(intervalToken, "h:")
	hours, err := parsePositiveInt(hoursStr)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE: invalid interval: %w", err)
	}
	innerRaw := strings.TrimSpace(strings.Join(args[2:], " "))
	if innerRaw == "" {
		return nil, fmt.Errorf("SCHEDULE: missing inner command")
	}
	inner, err := parseInner(innerRaw, flags)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE: %w", err)
	}
	if _, nested := inner.(Schedule); nested {
		return nil, ErrNestedSchedule
	}
	return Schedule{IntervalHours: hours, Inner: inner}, nil
}

func parsePayoutSplits(joined string) ([]PayoutShare, error) {
	entries := strings.Split(joined, ",")
	shares := make([]PayoutShare, 0, len(entries))
	total := 0
	for _, e := range entries {
		e = strings.TrimSpace(e)
		parts := strings.SplitN(e, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid split entry %q", e)
		}
		addr, err := validateAddress(parts[0])
		if err != nil {
			return nil, err
		}
		pct, err := parsePositiveInt(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid percentage in %q: %w", e, err)
		}
		shares = append(shares, PayoutShare{To: addr, Pct: pct})
		total += pct
	}
	if total != 100 {
		return nil, ErrPayoutSplitSum
	}
	return shares, nil
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func parseAmount(s string) (money.Amount, error) {
	a, err := money.Parse(s)
	if err != nil {
		return money.Amount{}, err
	}
	if a.Sign() <= 0 {
		return money.Amount{}, fmt.Errorf("amount must be positive: %q", s)
	}
	return a, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("expected a positive integer, got %d", n)
	}
	return n, nil
}

func validateIdentifier(s, what string) (string, error) {
	if len(s) == 0 || len(s) > 64 {
		return "", fmt.Errorf("invalid %s length", what)
	}
	return s, nil
}

func validateAsset(s string) (string, error) {
	if len(s) == 0 || len(s) > 12 {
		return "", fmt.Errorf("invalid asset %q", s)
	}
	for _, r := range s {
		if !(r >= 'A' && r <= 'Z') && !(r >= '0' && r <= '9') {
			return "", fmt.Errorf("invalid asset %q", s)
		}
	}
	return s, nil
}

func validateChain(s string) (string, error) {
	if len(s) == 0 || len(s) > 32 {
		return "", fmt.Errorf("invalid chain %q", s)
	}
	for _, r := range s {
		lower := r >= 'a' && r <= 'z'
		digit := r >= '0' && r <= '9'
		if !lower && !digit && r != '-' {
			return "", fmt.Errorf("invalid chain %q", s)
		}
	}
	return s, nil
}

// validateAddress accepts either a 0x-prefixed hex address (EVM, 20 bytes;
// or Sui, 32 bytes) or a bech32-encoded identifier (state-channel /
// custodial handles), per chain family. The bech32 branch is decoded (not
// just charset-checked) so a mistyped checksum is rejected at parse time
// the same way crypto.DecodeAddress rejects one in the teacher's chain.
func validateAddress(s string) (string, error) {
	if strings.HasPrefix(s, "0x") {
		hexPart := s[2:]
		if len(hexPart) != 40 && len(hexPart) != 64 {
			return "", fmt.Errorf("invalid address length %q", s)
		}
		for _, r := range hexPart {
			if !isHex(r) {
				return "", fmt.Errorf("invalid address %q", s)
			}
		}
		return strings.ToLower(s), nil
	}
	if len(s) < 3 || len(s) > 90 {
		return "", fmt.Errorf("invalid address length %q", s)
	}
	if _, _, err := bech32.Decode(s); err != nil {
		return "", fmt.Errorf("invalid address %q: %w", s, err)
	}
	return strings.ToLower(s), nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
