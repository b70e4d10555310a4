package params

import (
	"strconv"

	"peerlend/core/types"
)

const (
	EventTypeConfigUpdated     = "params.lending.updated"
	EventTypeAuthorityProposed = "params.authority.proposed"
	EventTypeAuthorityAccepted = "params.authority.accepted"
)

type ConfigUpdated struct {
	Config GlobalConfig
}

func (ConfigUpdated) EventType() string { return EventTypeConfigUpdated }

func (e ConfigUpdated) Event() *types.Event {
	return &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"authority":         formatAddr(e.Config.Authority),
			"teamWallet":        formatAddr(e.Config.TeamWallet),
			"lendFeeRate":       strconv.FormatUint(e.Config.LendFeeRate, 10),
			"borrowFeeRate":     strconv.FormatUint(e.Config.BorrowFeeRate, 10),
			"defaultExpiryDays": strconv.FormatUint(uint64(e.Config.DefaultExpiryDays), 10),
		},
	}
}

type AuthorityProposed struct {
	Current [20]byte
	Pending [20]byte
}

func (AuthorityProposed) EventType() string { return EventTypeAuthorityProposed }

func (e AuthorityProposed) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAuthorityProposed,
		Attributes: map[string]string{
			"authority": formatAddr(e.Current),
			"pending":   formatAddr(e.Pending),
		},
	}
}

type AuthorityAccepted struct {
	Previous  [20]byte
	Authority [20]byte
}

func (AuthorityAccepted) EventType() string { return EventTypeAuthorityAccepted }

func (e AuthorityAccepted) Event() *types.Event {
	return &types.Event{
		Type: EventTypeAuthorityAccepted,
		Attributes: map[string]string{
			"previous":  formatAddr(e.Previous),
			"authority": formatAddr(e.Authority),
		},
	}
}
