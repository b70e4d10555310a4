package common

import (
	"errors"
	"fmt"
)

// Module names recognised by the pause switches.
const (
	ModuleLending = "lending"
	ModuleToken   = "token"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when module is switched off.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%w: %s", ErrModulePaused, module)
	}
	return nil
}
