package diff

import (
	"time"

	"github.com/basiliscos/syncspirit-go/internal/model"
	"github.com/basiliscos/syncspirit-go/internal/protocol"
)

// AddPendingDevice records an unsolicited contact attempt from a device
// the operator has not yet decided about.
type AddPendingDevice struct {
	Base
	Device *model.PendingDevice
}

func (d *AddPendingDevice) Kind() Kind { return KindAddPendingDevice }

func (d *AddPendingDevice) applyImpl(c *model.Cluster) error {
	c.PutPendingDevice(d.Device)
	return nil
}

// RemovePendingDevice drops a pending contact, e.g. after the operator
// admits or explicitly ignores it.
type RemovePendingDevice struct {
	Base
	ID protocol.DeviceID
}

func (d *RemovePendingDevice) Kind() Kind { return KindRemovePendingDevice }

func (d *RemovePendingDevice) applyImpl(c *model.Cluster) error {
	c.RemovePendingDevice(d.ID)
	return nil
}

// AddIgnoredDevice records that an operator has explicitly refused a
// device's contact attempts.
type AddIgnoredDevice struct {
	Base
	Device *model.IgnoredDevice
}

func (d *AddIgnoredDevice) Kind() Kind { return KindAddIgnoredDevice }

func (d *AddIgnoredDevice) applyImpl(c *model.Cluster) error {
	c.PutIgnoredDevice(d.Device)
	WithChild(d, &RemovePendingDevice{ID: d.Device.ID})
	return nil
}

// RemoveIgnoredDevice un-ignores a device, re-opening it to future
// pending-connected events.
type RemoveIgnoredDevice struct {
	Base
	ID protocol.DeviceID
}

func (d *RemoveIgnoredDevice) Kind() Kind { return KindRemoveIgnoredDevice }

func (d *RemoveIgnoredDevice) applyImpl(c *model.Cluster) error {
	c.RemoveIgnoredDevice(d.ID)
	return nil
}

// PendingConnected records a fresh contact attempt from a device that is
// neither known, pending, nor ignored: it becomes pending with a fresh
// last-seen timestamp.
type PendingConnected struct {
	Base
	ID       protocol.DeviceID
	Name     string
	Address  string
	At       time.Time
}

func (d *PendingConnected) Kind() Kind { return KindPendingConnected }

func (d *PendingConnected) applyImpl(c *model.Cluster) error {
	if pd, ok := c.PendingDevice(d.ID); ok {
		pd.LastSeen = d.At
		pd.Address = d.Address
		return nil
	}
	c.PutPendingDevice(&model.PendingDevice{
		ID:       d.ID,
		Name:     d.Name,
		Address:  d.Address,
		LastSeen: d.At,
	})
	return nil
}

// IgnoredConnected refreshes an ignored device's last-seen timestamp
// without promoting it out of the ignore list.
type IgnoredConnected struct {
	Base
	ID      protocol.DeviceID
	Address string
	At      time.Time
}

func (d *IgnoredConnected) Kind() Kind { return KindIgnoredConnected }

func (d *IgnoredConnected) applyImpl(c *model.Cluster) error {
	ig, ok := c.IgnoredDevice(d.ID)
	if !ok {
		return nil
	}
	ig.LastSeen = d.At
	ig.Address = d.Address
	return nil
}

// UnknownConnected is a connection attempt from a device already known
// to the cluster but currently unreachable/offline. netctrl does not
// construct it.
type UnknownConnected struct {
	Base
	ID      protocol.DeviceID
	Address string
}

func (d *UnknownConnected) Kind() Kind { return KindUnknownConnected }

func (d *UnknownConnected) applyImpl(c *model.Cluster) error {
	dev, err := c.RequireDevice(d.ID)
	if err != nil {
		return err
	}
	if d.Address != "" {
		dev.Endpoints = append([]string{d.Address}, dev.Endpoints...)
	}
	return nil
}
