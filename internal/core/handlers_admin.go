package core

import (
	"github.com/AgoraXchange/agora-contract/internal/command"
	"github.com/AgoraXchange/agora-contract/internal/event"
	"github.com/AgoraXchange/agora-contract/internal/state"

	"github.com/google/uuid"
)

func (c *BettingCore) requireOwner(caller uuid.UUID) error {
	if caller != c.platform.Owner {
		return reject(RejectAuthorization, "Caller is not the owner")
	}
	return nil
}

func (c *BettingCore) handleSetPlatformFee(cmd *command.SetPlatformFee) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if cmd.FeePct < 0 || cmd.FeePct > state.MaxFeePct {
		return nil, reject(RejectValidation, reasonFeeTooHigh)
	}

	old := c.platform.FeePct
	c.platform.FeePct = cmd.FeePct
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypePlatformFeeUpdated,
		payload: event.PlatformFeeUpdated{
			OldFeePct: old,
			NewFeePct: cmd.FeePct,
		},
	}, nil
}

func (c *BettingCore) handleSetFeeRecipient(cmd *command.SetFeeRecipient) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if cmd.Recipient == uuid.Nil {
		return nil, reject(RejectValidation, "Fee recipient required")
	}

	old := c.platform.FeeRecipient
	c.platform.FeeRecipient = cmd.Recipient
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypeFeeRecipientUpdated,
		payload: event.FeeRecipientUpdated{
			OldRecipient: old,
			NewRecipient: cmd.Recipient,
		},
	}, nil
}

func (c *BettingCore) handleSetDefaultBetLimits(cmd *command.SetDefaultBetLimits) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if cmd.MinBet <= 0 || cmd.MaxBet < cmd.MinBet {
		return nil, reject(RejectValidation, "Invalid bet limits")
	}

	c.platform.MinBet = cmd.MinBet
	c.platform.MaxBet = cmd.MaxBet
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypeDefaultBetLimitsUpdated,
		payload: event.DefaultBetLimitsUpdated{
			MinBet: cmd.MinBet,
			MaxBet: cmd.MaxBet,
		},
	}, nil
}

func (c *BettingCore) handleSetOracle(cmd *command.SetOracle) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if cmd.Oracle == uuid.Nil {
		return nil, reject(RejectValidation, "Oracle identity required")
	}

	old := c.platform.Oracle
	c.platform.Oracle = cmd.Oracle
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypeOracleUpdated,
		payload: event.OracleUpdated{
			OldOracle: old,
			NewOracle: cmd.Oracle,
		},
	}, nil
}

func (c *BettingCore) handleTransferOwnership(cmd *command.TransferOwnership) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if cmd.NewOwner == uuid.Nil {
		return nil, reject(RejectValidation, "New owner required")
	}

	old := c.platform.Owner
	c.platform.Owner = cmd.NewOwner
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypeOwnershipTransferred,
		payload: event.OwnershipTransferred{
			OldOwner: old,
			NewOwner: cmd.NewOwner,
		},
	}, nil
}

func (c *BettingCore) handlePause(cmd *command.Pause) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if c.platform.Paused {
		return nil, reject(RejectStateConflict, reasonPaused)
	}

	c.platform.Paused = true
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypePaused,
		payload:   event.Paused{By: cmd.CallerID},
	}, nil
}

func (c *BettingCore) handleUnpause(cmd *command.Unpause) (*dispatchResult, error) {
	if err := c.requireOwner(cmd.CallerID); err != nil {
		return nil, err
	}
	if !c.platform.Paused {
		return nil, reject(RejectStateConflict, "Pausable: not paused")
	}

	c.platform.Paused = false
	c.platform.Version++

	return &dispatchResult{
		eventType: event.EventTypeUnpaused,
		payload:   event.Unpaused{By: cmd.CallerID},
	}, nil
}
