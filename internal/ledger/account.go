package ledger

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeMarket AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// Market sub-types
	SubTypeEscrow AccountSubType = iota

	// System sub-types
	SubTypeSystemFees
	SubTypeSystemPartyRewards

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalPayouts
)

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"ETH":  1,
		"USDT": 2,
		"USDC": 3,
	}
	idToAsset = map[AssetID]string{
		1: "ETH",
		2: "USDT",
		3: "USDC",
	}
)

// DefaultAssetID is the asset all stakes are denominated in
const DefaultAssetID AssetID = 1

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // Encoded market ID for market accounts, name hash for system accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewMarketAccountKey creates a key for per-market escrow accounts
func NewMarketAccountKey(marketID uint64, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	binary.BigEndian.PutUint64(entityID[8:], marketID)
	return AccountKey{
		Scope:    AccountScopeMarket,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(name string, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	copy(entityID[:], []byte(name))
	return AccountKey{
		Scope:    AccountScopeSystem,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeMarket:
		marketID := binary.BigEndian.Uint64(k.EntityID[8:])
		return fmt.Sprintf("market:%d:%s:%s", marketID, k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath is the inverse of AccountPath, used on snapshot restore
func ParseAccountPath(path string) (AccountKey, error) {
	parts := strings.Split(path, ":")
	if len(parts) < 3 {
		return AccountKey{}, fmt.Errorf("malformed account path: %q", path)
	}

	assetID, ok := GetAssetID(parts[len(parts)-1])
	if !ok {
		return AccountKey{}, fmt.Errorf("unknown asset in path: %q", path)
	}

	subType, ok := subTypeFromName(parts[len(parts)-2])
	if !ok {
		return AccountKey{}, fmt.Errorf("unknown sub-type in path: %q", path)
	}

	switch parts[0] {
	case "market":
		if len(parts) != 4 {
			return AccountKey{}, fmt.Errorf("malformed market path: %q", path)
		}
		marketID, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return AccountKey{}, fmt.Errorf("malformed market id in path %q: %w", path, err)
		}
		return NewMarketAccountKey(marketID, subType, assetID), nil
	case "system":
		return NewSystemAccountKey(parts[1], subType, assetID), nil
	case "external":
		return NewExternalAccountKey(subType, assetID), nil
	default:
		return AccountKey{}, fmt.Errorf("unknown scope in path: %q", path)
	}
}

// MarketID decodes the market ID from a market-scoped key
func (k AccountKey) MarketID() uint64 {
	return binary.BigEndian.Uint64(k.EntityID[8:])
}

func subTypeFromName(name string) (AccountSubType, bool) {
	switch name {
	case "escrow":
		return SubTypeEscrow, true
	case "fees":
		return SubTypeSystemFees, true
	case "party_rewards":
		return SubTypeSystemPartyRewards, true
	case "deposits":
		return SubTypeExternalDeposits, true
	case "payouts":
		return SubTypeExternalPayouts, true
	default:
		return 0, false
	}
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeEscrow:
		return "escrow"
	case SubTypeSystemFees:
		return "fees"
	case SubTypeSystemPartyRewards:
		return "party_rewards"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalPayouts:
		return "payouts"
	default:
		return "unknown"
	}
}
