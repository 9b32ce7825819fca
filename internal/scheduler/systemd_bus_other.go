//go:build !linux

package scheduler

import (
	"context"
	"errors"
)

var errNoUserBus = errors.New("systemd user manager is only available on linux")

func dialUserBus(context.Context) (unitBus, error) { return nil, errNoUserBus }
