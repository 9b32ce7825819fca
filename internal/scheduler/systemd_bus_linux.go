//go:build linux

package scheduler

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

type dbusUnitBus struct {
	conn *dbus.Conn
}

func dialUserBus(ctx context.Context) (unitBus, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &dbusUnitBus{conn: conn}, nil
}

func (b *dbusUnitBus) Enable(ctx context.Context, names []string) error {
	_, _, err := b.conn.EnableUnitFilesContext(ctx, names, false, true)
	return err
}

func (b *dbusUnitBus) Disable(ctx context.Context, names []string) error {
	_, err := b.conn.DisableUnitFilesContext(ctx, names, false)
	return err
}

func (b *dbusUnitBus) Reload(ctx context.Context) error { return b.conn.ReloadContext(ctx) }

func (b *dbusUnitBus) Start(ctx context.Context, name string) error {
	_, err := b.conn.StartUnitContext(ctx, name, "replace", nil)
	return err
}

func (b *dbusUnitBus) Stop(ctx context.Context, name string) error {
	_, err := b.conn.StopUnitContext(ctx, name, "replace", nil)
	return err
}

func (b *dbusUnitBus) Close() { b.conn.Close() }
