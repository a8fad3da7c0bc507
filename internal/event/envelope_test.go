package event_test

import (
	"testing"

	"github.com/AgoraXchange/agora-contract/internal/event"
)

func TestParseEventType_RoundTrip(t *testing.T) {
	types := []event.EventType{
		event.EventTypeMarketCreated,
		event.EventTypeBetCommitted,
		event.EventTypeBetRevealed,
		event.EventTypeBetCancelled,
		event.EventTypeBetRefunded,
		event.EventTypeBettingClosed,
		event.EventTypeMarketCancelled,
		event.EventTypeWinnerDeclared,
		event.EventTypeRewardsDistributed,
		event.EventTypeRewardClaimed,
		event.EventTypePlatformFeeUpdated,
		event.EventTypeFeeRecipientUpdated,
		event.EventTypeDefaultBetLimitsUpdated,
		event.EventTypeOracleUpdated,
		event.EventTypeOwnershipTransferred,
		event.EventTypePaused,
		event.EventTypeUnpaused,
	}
	for _, et := range types {
		parsed, ok := event.ParseEventType(et.String())
		if !ok {
			t.Errorf("%s: parse failed", et)
			continue
		}
		if parsed != et {
			t.Errorf("%s: round trip gave %s", et, parsed)
		}
	}
}

func TestParseEventType_Unknown(t *testing.T) {
	if _, ok := event.ParseEventType("NotAnEvent"); ok {
		t.Error("expected unknown event type to fail")
	}
	if _, ok := event.ParseEventType("Unknown"); ok {
		t.Error("the Unknown sentinel is not a valid stored type")
	}
}
