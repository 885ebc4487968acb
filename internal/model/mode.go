package model

import "github.com/rotisserie/eris"

// Mode is the scheduler operating mode.
type Mode string

const (
	// ModeManual runs no timer; analyses fire only on explicit request.
	ModeManual Mode = "manual"
	// ModeLive analyzes the current decision on every tick without
	// perturbing it.
	ModeLive Mode = "live"
	// ModeSimulation perturbs the decision each tick and analyzes on the
	// gating cadence.
	ModeSimulation Mode = "simulation"
)

// ParseMode validates a mode string from config or the API.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeManual, ModeLive, ModeSimulation:
		return Mode(s), nil
	default:
		return "", eris.Errorf("model: unknown mode %q", s)
	}
}
