package app

import (
	"fmt"

	"github.com/dkeye/signalroom/internal/domain"
)

type BackpressureAction int

const (
	CloseConn BackpressureAction = iota
	DropEvent
)

func (a BackpressureAction) String() string {
	switch a {
	case CloseConn:
		return "close"
	case DropEvent:
		return "drop"
	}
	return fmt.Sprintf("BackpressureAction(%d)", int(a))
}

// ParseBackpressureAction accepts the config spelling: "close" or "drop".
func ParseBackpressureAction(s string) (BackpressureAction, error) {
	switch s {
	case "close", "":
		return CloseConn, nil
	case "drop":
		return DropEvent, nil
	}
	return 0, fmt.Errorf("unknown backpressure action %q", s)
}

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn domain.ConnID) BackpressureAction
}

type SimplePolicy struct {
	Action BackpressureAction
}

func (p SimplePolicy) OnBackPressure(domain.ConnID) BackpressureAction {
	return p.Action
}
