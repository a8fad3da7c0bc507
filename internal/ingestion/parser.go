package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/commitment"
)

// Wire structs for the JSON command payloads carried over NATS and HTTP.
// Timestamps are epoch microseconds, UUIDs canonical strings, commitments
// 64-char hex.

type createMarketWire struct {
	CommandID       string `json:"command_id"`
	CallerID        string `json:"caller_id"`
	Topic           string `json:"topic"`
	PartyA          string `json:"party_a"`
	PartyB          string `json:"party_b"`
	PartyRewardPct  int64  `json:"party_reward_pct"`
	PartyRewardDest string `json:"party_reward_dest"`
	BettingEndUs    int64  `json:"betting_end_us"`
	MinBet          int64  `json:"min_bet"`
	MaxBet          int64  `json:"max_bet"`
	TimestampUs     int64  `json:"timestamp_us"`
}

type commitBetWire struct {
	CommandID    string `json:"command_id"`
	CallerID     string `json:"caller_id"`
	MarketID     uint64 `json:"market_id"`
	Commitment   string `json:"commitment"`
	Amount       int64  `json:"amount"`
	DepositValue int64  `json:"deposit_value"`
	TimestampUs  int64  `json:"timestamp_us"`
}

type revealBetWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	MarketID    uint64 `json:"market_id"`
	Choice      uint8  `json:"choice"`
	Nonce       uint64 `json:"nonce"`
	TimestampUs int64  `json:"timestamp_us"`
}

type betRecordWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	MarketID    uint64 `json:"market_id"`
	RecordIndex uint64 `json:"record_index"`
	TimestampUs int64  `json:"timestamp_us"`
}

type marketRefWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	MarketID    uint64 `json:"market_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

type declareWinnerWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	MarketID    uint64 `json:"market_id"`
	Winner      uint8  `json:"winner"`
	TimestampUs int64  `json:"timestamp_us"`
}

type setFeeWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	FeePct      int64  `json:"fee_pct"`
	TimestampUs int64  `json:"timestamp_us"`
}

type setRecipientWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Recipient   string `json:"recipient"`
	TimestampUs int64  `json:"timestamp_us"`
}

type setLimitsWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	MinBet      int64  `json:"min_bet"`
	MaxBet      int64  `json:"max_bet"`
	TimestampUs int64  `json:"timestamp_us"`
}

type setOracleWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Oracle      string `json:"oracle"`
	TimestampUs int64  `json:"timestamp_us"`
}

type transferOwnershipWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	NewOwner    string `json:"new_owner"`
	TimestampUs int64  `json:"timestamp_us"`
}

type bareAdminWire struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParseCommand converts a raw JSON payload into a typed command based on
// the kind resolved from the NATS subject.
func ParseCommand(kind string, data []byte) (command.Command, error) {
	switch kind {
	case "CreateMarket":
		return parseCreateMarket(data)
	case "CommitBet":
		return parseCommitBet(data)
	case "RevealBet":
		return parseRevealBet(data)
	case "CancelBet":
		w, cmdID, caller, err := parseBetRecord(data)
		if err != nil {
			return nil, err
		}
		return &command.CancelBet{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, RecordIndex: w.RecordIndex, At: time.UnixMicro(w.TimestampUs)}, nil
	case "RefundBet":
		w, cmdID, caller, err := parseBetRecord(data)
		if err != nil {
			return nil, err
		}
		return &command.RefundBet{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, RecordIndex: w.RecordIndex, At: time.UnixMicro(w.TimestampUs)}, nil
	case "ClaimReward":
		w, cmdID, caller, err := parseMarketRef(data)
		if err != nil {
			return nil, err
		}
		return &command.ClaimReward{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, At: time.UnixMicro(w.TimestampUs)}, nil
	case "CloseBetting":
		w, cmdID, caller, err := parseMarketRef(data)
		if err != nil {
			return nil, err
		}
		return &command.CloseBetting{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, At: time.UnixMicro(w.TimestampUs)}, nil
	case "DistributeRewards":
		w, cmdID, caller, err := parseMarketRef(data)
		if err != nil {
			return nil, err
		}
		return &command.DistributeRewards{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, At: time.UnixMicro(w.TimestampUs)}, nil
	case "CancelMarket":
		w, cmdID, caller, err := parseMarketRef(data)
		if err != nil {
			return nil, err
		}
		return &command.CancelMarket{CommandID: cmdID, CallerID: caller, MarketID: w.MarketID, At: time.UnixMicro(w.TimestampUs)}, nil
	case "DeclareWinner":
		return parseDeclareWinner(data)
	case "SetPlatformFee":
		return parseSetPlatformFee(data)
	case "SetFeeRecipient":
		return parseSetFeeRecipient(data)
	case "SetDefaultBetLimits":
		return parseSetDefaultBetLimits(data)
	case "SetOracle":
		return parseSetOracle(data)
	case "TransferOwnership":
		return parseTransferOwnership(data)
	case "Pause":
		w, cmdID, caller, err := parseBareAdmin(data)
		if err != nil {
			return nil, err
		}
		return &command.Pause{CommandID: cmdID, CallerID: caller, At: time.UnixMicro(w.TimestampUs)}, nil
	case "Unpause":
		w, cmdID, caller, err := parseBareAdmin(data)
		if err != nil {
			return nil, err
		}
		return &command.Unpause{CommandID: cmdID, CallerID: caller, At: time.UnixMicro(w.TimestampUs)}, nil
	default:
		return nil, fmt.Errorf("unknown command kind %q", kind)
	}
}

func parseIDs(commandID, callerID string) (uuid.UUID, uuid.UUID, error) {
	cmdID, err := uuid.Parse(commandID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse command_id: %w", err)
	}
	caller, err := uuid.Parse(callerID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse caller_id: %w", err)
	}
	return cmdID, caller, nil
}

func parseCreateMarket(data []byte) (command.Command, error) {
	var w createMarketWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal create_market: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	dest, err := uuid.Parse(w.PartyRewardDest)
	if err != nil {
		return nil, fmt.Errorf("parse party_reward_dest: %w", err)
	}
	return &command.CreateMarket{
		CommandID:       cmdID,
		CallerID:        caller,
		Topic:           w.Topic,
		PartyA:          w.PartyA,
		PartyB:          w.PartyB,
		PartyRewardPct:  w.PartyRewardPct,
		PartyRewardDest: dest,
		BettingEndTime:  time.UnixMicro(w.BettingEndUs),
		MinBet:          w.MinBet,
		MaxBet:          w.MaxBet,
		At:              time.UnixMicro(w.TimestampUs),
	}, nil
}

func parseCommitBet(data []byte) (command.Command, error) {
	var w commitBetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal commit_bet: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	com, err := commitment.Parse(w.Commitment)
	if err != nil {
		return nil, fmt.Errorf("parse commitment: %w", err)
	}
	return &command.CommitBet{
		CommandID:    cmdID,
		CallerID:     caller,
		MarketID:     w.MarketID,
		Commitment:   com,
		Amount:       w.Amount,
		DepositValue: w.DepositValue,
		At:           time.UnixMicro(w.TimestampUs),
	}, nil
}

func parseRevealBet(data []byte) (command.Command, error) {
	var w revealBetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal reveal_bet: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	return &command.RevealBet{
		CommandID: cmdID,
		CallerID:  caller,
		MarketID:  w.MarketID,
		Choice:    w.Choice,
		Nonce:     w.Nonce,
		At:        time.UnixMicro(w.TimestampUs),
	}, nil
}

func parseBetRecord(data []byte) (betRecordWire, uuid.UUID, uuid.UUID, error) {
	var w betRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return w, uuid.Nil, uuid.Nil, fmt.Errorf("unmarshal bet record command: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	return w, cmdID, caller, err
}

func parseMarketRef(data []byte) (marketRefWire, uuid.UUID, uuid.UUID, error) {
	var w marketRefWire
	if err := json.Unmarshal(data, &w); err != nil {
		return w, uuid.Nil, uuid.Nil, fmt.Errorf("unmarshal market command: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	return w, cmdID, caller, err
}

func parseDeclareWinner(data []byte) (command.Command, error) {
	var w declareWinnerWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal declare_winner: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	return &command.DeclareWinner{
		CommandID: cmdID,
		CallerID:  caller,
		MarketID:  w.MarketID,
		Winner:    w.Winner,
		At:        time.UnixMicro(w.TimestampUs),
	}, nil
}

func parseSetPlatformFee(data []byte) (command.Command, error) {
	var w setFeeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal set_fee: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	return &command.SetPlatformFee{CommandID: cmdID, CallerID: caller, FeePct: w.FeePct, At: time.UnixMicro(w.TimestampUs)}, nil
}

func parseSetFeeRecipient(data []byte) (command.Command, error) {
	var w setRecipientWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal set_fee_recipient: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	recipient, err := uuid.Parse(w.Recipient)
	if err != nil {
		return nil, fmt.Errorf("parse recipient: %w", err)
	}
	return &command.SetFeeRecipient{CommandID: cmdID, CallerID: caller, Recipient: recipient, At: time.UnixMicro(w.TimestampUs)}, nil
}

func parseSetDefaultBetLimits(data []byte) (command.Command, error) {
	var w setLimitsWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal set_bet_limits: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	return &command.SetDefaultBetLimits{CommandID: cmdID, CallerID: caller, MinBet: w.MinBet, MaxBet: w.MaxBet, At: time.UnixMicro(w.TimestampUs)}, nil
}

func parseSetOracle(data []byte) (command.Command, error) {
	var w setOracleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal set_oracle: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	oracle, err := uuid.Parse(w.Oracle)
	if err != nil {
		return nil, fmt.Errorf("parse oracle: %w", err)
	}
	return &command.SetOracle{CommandID: cmdID, CallerID: caller, Oracle: oracle, At: time.UnixMicro(w.TimestampUs)}, nil
}

func parseTransferOwnership(data []byte) (command.Command, error) {
	var w transferOwnershipWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal transfer_ownership: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	if err != nil {
		return nil, err
	}
	newOwner, err := uuid.Parse(w.NewOwner)
	if err != nil {
		return nil, fmt.Errorf("parse new_owner: %w", err)
	}
	return &command.TransferOwnership{CommandID: cmdID, CallerID: caller, NewOwner: newOwner, At: time.UnixMicro(w.TimestampUs)}, nil
}

func parseBareAdmin(data []byte) (bareAdminWire, uuid.UUID, uuid.UUID, error) {
	var w bareAdminWire
	if err := json.Unmarshal(data, &w); err != nil {
		return w, uuid.Nil, uuid.Nil, fmt.Errorf("unmarshal admin command: %w", err)
	}
	cmdID, caller, err := parseIDs(w.CommandID, w.CallerID)
	return w, cmdID, caller, err
}
