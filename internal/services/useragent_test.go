package services

import (
	"testing"

	"snaplink/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestUserAgentParser_Classify(t *testing.T) {
	parser := NewUserAgentParser()

	tests := []struct {
		name    string
		ua      string
		browser string
		device  string
	}{
		{
			name:    "Chrome on Android phone",
			ua:      "Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			browser: "Chrome",
			device:  models.DeviceMobile,
		},
		{
			name:    "Safari on iPhone",
			ua:      "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			device:  models.DeviceMobile,
		},
		{
			name:    "Safari on iPad",
			ua:      "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.6 Mobile/15E148 Safari/604.1",
			browser: "Safari",
			device:  models.DeviceTablet,
		},
		{
			name:    "Chrome on Android tablet",
			ua:      "Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser: "Chrome",
			device:  models.DeviceTablet,
		},
		{
			name:    "Firefox on desktop",
			ua:      "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser: "Firefox",
			device:  models.DeviceDesktop,
		},
		{
			name:    "Empty",
			ua:      "",
			browser: "unknown",
			device:  models.DeviceDesktop,
		},
		{
			name:    "Whitespace",
			ua:      "   ",
			browser: "unknown",
			device:  models.DeviceDesktop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := parser.Classify(tt.ua)
			assert.Equal(t, tt.browser, info.BrowserFamily)
			assert.Equal(t, tt.device, DeviceType(info))
		})
	}

	t.Run("Garbage does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			info := parser.Classify("(((;;;)))\x00\xff")
			assert.NotEmpty(t, info.BrowserFamily)
			assert.Equal(t, models.DeviceDesktop, DeviceType(info))
		})
	})
}

func TestDeviceType(t *testing.T) {
	assert.Equal(t, models.DeviceMobile, DeviceType(UserAgentInfo{IsMobile: true}))
	assert.Equal(t, models.DeviceMobile, DeviceType(UserAgentInfo{IsMobile: true, IsTablet: true}))
	assert.Equal(t, models.DeviceTablet, DeviceType(UserAgentInfo{IsTablet: true}))
	assert.Equal(t, models.DeviceDesktop, DeviceType(UserAgentInfo{}))
}
