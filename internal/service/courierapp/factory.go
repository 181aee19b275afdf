package courierapp

import (
	"context"
	"strings"
)

type actionFunc func(context.Context, Event) error

type actionFactory struct {
	byKind map[string]actionFunc
}

func newActionFactory(onLocation, onStep, onFreed actionFunc) *actionFactory {
	return &actionFactory{
		byKind: map[string]actionFunc{
			KindLocation:  onLocation,
			KindPickedUp:  onStep,
			KindOnTheWay:  onStep,
			KindDelivered: onStep,
			KindFreed:     onFreed,
			// cancellation belongs to the requester, not the courier
		},
	}
}

func (f *actionFactory) get(kind string) (actionFunc, bool) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	fn, ok := f.byKind[kind]
	return fn, ok
}
