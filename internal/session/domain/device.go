package domain

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownName = "Unknown"

// Device types.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

// ParseDevice classifies a raw user-agent string. Fields it cannot determine
// are "Unknown"; the device type falls back to "unknown".
func ParseDevice(rawUA string) Device {
	rawUA = strings.TrimSpace(rawUA)
	if rawUA == "" {
		return Device{Type: DeviceUnknown, Browser: unknownName, OS: unknownName, Platform: unknownName}
	}
	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	d := Device{
		Browser:  orUnknown(browser),
		OS:       orUnknown(ua.OS()),
		Platform: orUnknown(ua.Platform()),
	}
	switch {
	case ua.Bot():
		d.Type = DeviceBot
	case strings.Contains(rawUA, "iPad") || (strings.Contains(rawUA, "Android") && !strings.Contains(rawUA, "Mobile")):
		d.Type = DeviceTablet
	case ua.Mobile():
		d.Type = DeviceMobile
	case d.OS != unknownName:
		d.Type = DeviceDesktop
	default:
		d.Type = DeviceUnknown
	}
	return d
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownName
	}
	return s
}
