package evdev

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jochenvg/go-udev"
)

// DeviceInfo describes one capturable input device for the CLI.
type DeviceInfo struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Keyboard bool   `json:"keyboard"`
	Mouse    bool   `json:"mouse"`
}

// ListDevices enumerates the keyboards and mice the capture source would
// claim.
func ListDevices() ([]DeviceInfo, error) {
	u := &udev.Udev{}
	enum := u.NewEnumerate()
	enum.AddMatchSubsystem("input")
	devices, err := enum.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate input devices: %w", err)
	}

	var infos []DeviceInfo
	for _, dev := range devices {
		devnode := dev.Devnode()
		if devnode == "" || !strings.HasPrefix(filepath.Base(devnode), "event") {
			continue
		}
		keyboard := dev.PropertyValue("ID_INPUT_KEYBOARD") == "1"
		mouse := dev.PropertyValue("ID_INPUT_MOUSE") == "1"
		if !keyboard && !mouse {
			continue
		}
		infos = append(infos, DeviceInfo{
			Path:     devnode,
			Name:     dev.PropertyValue("NAME"),
			Keyboard: keyboard,
			Mouse:    mouse,
		})
	}
	return infos, nil
}
