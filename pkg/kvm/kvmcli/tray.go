package kvmcli

import (
	"context"

	"github.com/getlantern/systray"
	"github.com/kvmlink/kvmlink/pkg/kvm"
)

// runWithTray runs the client alongside a tray icon whose quit item stops
// it. systray insists on owning the calling goroutine, so the client moves
// to a separate one.
func runWithTray(ctx context.Context, client *kvm.Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Run(ctx)
		systray.Quit()
	}()

	systray.Run(func() {
		systray.SetTitle("kvmlink")
		systray.SetTooltip("kvmlink client")
		quit := systray.AddMenuItem("Quit", "Disconnect and exit")
		go func() {
			select {
			case <-ctx.Done():
			case <-quit.ClickedCh:
				cancel()
			}
		}()
	}, nil)

	return <-errCh
}
