package params

import (
	"bytes"
	"encoding/json"
	"fmt"

	"peerlend/config"
	coreerrors "peerlend/core/errors"
	"peerlend/core/events"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for the persisted protocol parameters and the
// administrative write path for the lending configuration.
type Store struct {
	state   StoreState
	emitter events.Emitter
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

func (s *Store) emit(evt events.Event) {
	if s == nil || s.emitter == nil {
		return
	}
	s.emitter.Emit(evt)
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPauses persists the supplied pause configuration under the canonical
// parameter store key. Values are marshalled as JSON.
func (s *Store) SetPauses(pauses config.Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(pauses)
	if err != nil {
		return fmt.Errorf("params: encode pauses: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyPauses, encoded)
}

// Pauses loads the persisted pause configuration. When unset, a zero-value
// configuration is returned.
func (s *Store) Pauses() (config.Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return config.Pauses{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyPauses)
	if err != nil {
		return config.Pauses{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return config.Pauses{}, nil
	}
	var pauses config.Pauses
	if err := json.Unmarshal(raw, &pauses); err != nil {
		return config.Pauses{}, fmt.Errorf("params: decode pauses: %w", err)
	}
	return pauses, nil
}

// LendingConfig returns a snapshot of the global lending configuration. It
// fails with IncorrectConfigAccount when the singleton was never initialised.
func (s *Store) LendingConfig() (GlobalConfig, error) {
	state, err := s.withState()
	if err != nil {
		return GlobalConfig{}, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyLendingConfig)
	if err != nil {
		return GlobalConfig{}, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return GlobalConfig{}, coreerrors.ErrIncorrectConfigAccount
	}
	var payload globalConfigJSON
	if err := json.Unmarshal(raw, &payload); err != nil {
		return GlobalConfig{}, fmt.Errorf("params: decode lending config: %w", err)
	}
	return payload.toConfig()
}

func (s *Store) setLendingConfig(cfg GlobalConfig) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(cfg.toJSON())
	if err != nil {
		return fmt.Errorf("params: encode lending config: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyLendingConfig, encoded)
}
