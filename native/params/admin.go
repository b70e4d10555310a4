package params

import (
	"errors"

	coreerrors "peerlend/core/errors"
)

func validateRates(lend, borrow uint64) error {
	if lend > MaxFeeRate || borrow > MaxFeeRate {
		return ErrFeeRateTooHigh
	}
	return nil
}

// Initialize writes the first lending configuration. It runs once, from
// genesis.
func (s *Store) Initialize(cfg GlobalConfig) error {
	if _, err := s.LendingConfig(); err == nil {
		return ErrConfigExists
	} else if !errors.Is(err, coreerrors.ErrIncorrectConfigAccount) {
		return err
	}
	if cfg.Authority == ([20]byte{}) {
		return ErrZeroAuthority
	}
	if cfg.TeamWallet == ([20]byte{}) {
		return coreerrors.ErrIncorrectTeamWallet
	}
	if err := validateRates(cfg.LendFeeRate, cfg.BorrowFeeRate); err != nil {
		return err
	}
	cfg.PendingAuthority = [20]byte{}
	if err := s.setLendingConfig(cfg); err != nil {
		return err
	}
	s.emit(ConfigUpdated{Config: cfg})
	return nil
}

// Configure replaces the administrator-controlled fields. Only the current
// authority may call it.
func (s *Store) Configure(caller [20]byte, update Update) (GlobalConfig, error) {
	cfg, err := s.LendingConfig()
	if err != nil {
		return GlobalConfig{}, err
	}
	if caller != cfg.Authority {
		return GlobalConfig{}, coreerrors.ErrIncorrectAuthority
	}
	if update.TeamWallet == ([20]byte{}) {
		return GlobalConfig{}, coreerrors.ErrIncorrectTeamWallet
	}
	if err := validateRates(update.LendFeeRate, update.BorrowFeeRate); err != nil {
		return GlobalConfig{}, err
	}
	cfg.TeamWallet = update.TeamWallet
	cfg.LendFeeRate = update.LendFeeRate
	cfg.BorrowFeeRate = update.BorrowFeeRate
	cfg.DefaultExpiryDays = update.DefaultExpiryDays
	if err := s.setLendingConfig(cfg); err != nil {
		return GlobalConfig{}, err
	}
	s.emit(ConfigUpdated{Config: cfg})
	return cfg, nil
}

// ProposeAuthority nominates next as the incoming authority. Proposing the
// zero address withdraws a pending nomination.
func (s *Store) ProposeAuthority(caller, next [20]byte) error {
	cfg, err := s.LendingConfig()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return coreerrors.ErrIncorrectAuthority
	}
	cfg.PendingAuthority = next
	if err := s.setLendingConfig(cfg); err != nil {
		return err
	}
	s.emit(AuthorityProposed{Current: cfg.Authority, Pending: next})
	return nil
}

// AcceptAuthority completes the hand-off. Only the nominee may call it.
func (s *Store) AcceptAuthority(caller [20]byte) error {
	cfg, err := s.LendingConfig()
	if err != nil {
		return err
	}
	if !cfg.HasPendingAuthority() {
		return ErrNoPendingChange
	}
	if caller != cfg.PendingAuthority {
		return coreerrors.ErrIncorrectAuthority
	}
	previous := cfg.Authority
	cfg.Authority = cfg.PendingAuthority
	cfg.PendingAuthority = [20]byte{}
	if err := s.setLendingConfig(cfg); err != nil {
		return err
	}
	s.emit(AuthorityAccepted{Previous: previous, Authority: cfg.Authority})
	return nil
}
