// Package linux injects replayed input through two virtual HID devices
// created over /dev/uhid, one keyboard and one mouse.
package linux

import (
	"context"
	"fmt"

	"github.com/kvmlink/kvmlink/internal/replaysvc"
	"github.com/kvmlink/kvmlink/pkg/protocol"
	"github.com/psanford/uhid"
	"go.uber.org/zap"
)

const (
	vendorID  = 0x16c0
	productID = 0x27db
)

type Injector struct {
	log      *zap.Logger
	cancel   context.CancelFunc
	keyboard *keyboardDevice
	mouse    *mouseDevice
}

var _ replaysvc.Injector = (*Injector)(nil)

// NewInjector creates and opens both virtual devices. The kernel exposes
// them as ordinary HID inputs, so the replayed events reach the desktop
// through the same paths as real hardware.
func NewInjector(log *zap.Logger) (*Injector, error) {
	ctx, cancel := context.WithCancel(context.Background())

	keyboard, err := newKeyboardDevice(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create virtual keyboard: %w", err)
	}
	mouse, err := newMouseDevice(ctx)
	if err != nil {
		keyboard.Close()
		cancel()
		return nil, fmt.Errorf("failed to create virtual mouse: %w", err)
	}
	log.Info("Virtual input devices created")
	return &Injector{
		log:      log,
		cancel:   cancel,
		keyboard: keyboard,
		mouse:    mouse,
	}, nil
}

func (i *Injector) Key(usage uint16, pressed bool) error {
	return i.keyboard.Key(usage, pressed)
}

func (i *Injector) Button(button protocol.Button, pressed bool) error {
	return i.mouse.Button(button, pressed)
}

func (i *Injector) Move(dx, dy int32) error {
	return i.mouse.Move(dx, dy)
}

func (i *Injector) Wheel(dx, dy int32) error {
	return i.mouse.Wheel(dx, dy)
}

func (i *Injector) Close() error {
	i.cancel()
	kerr := i.keyboard.Close()
	merr := i.mouse.Close()
	if kerr != nil {
		return kerr
	}
	return merr
}

func openDevice(ctx context.Context, name string, descriptor []byte) (*uhid.Device, error) {
	dev, err := uhid.NewDevice(name, descriptor)
	if err != nil {
		return nil, err
	}
	dev.Data.Bus = 0x03
	dev.Data.VendorID = vendorID
	dev.Data.ProductID = productID
	events, err := dev.Open(ctx)
	if err != nil {
		return nil, err
	}
	// The kernel sends output reports (LED state and the like) that we do
	// not act on, but the channel has to be drained.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-events:
			}
		}
	}()
	return dev, nil
}
