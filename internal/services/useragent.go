package services

import (
	"strings"

	"snaplink/internal/models"

	"github.com/mssola/user_agent"
)

const unknownBrowser = "unknown"

type UserAgentInfo struct {
	BrowserFamily string
	IsMobile      bool
	IsTablet      bool
}

// UserAgentClassifier must tolerate empty and malformed input.
type UserAgentClassifier interface {
	Classify(raw string) UserAgentInfo
}

// UserAgentParser classifies user-agent strings with mssola/user_agent.
type UserAgentParser struct{}

func NewUserAgentParser() *UserAgentParser {
	return &UserAgentParser{}
}

func (p *UserAgentParser) Classify(raw string) (info UserAgentInfo) {
	info.BrowserFamily = unknownBrowser

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return info
	}
	defer func() {
		if r := recover(); r != nil {
			info = UserAgentInfo{BrowserFamily: unknownBrowser}
		}
	}()

	ua := user_agent.New(raw)
	if name, _ := ua.Browser(); name != "" {
		info.BrowserFamily = name
	}

	info.IsTablet = isTablet(ua, raw)
	info.IsMobile = !info.IsTablet && (ua.Mobile() || strings.Contains(raw, "Mobile"))
	return info
}

func isTablet(ua *user_agent.UserAgent, raw string) bool {
	if ua.Platform() == "iPad" || strings.Contains(raw, "Tablet") {
		return true
	}
	return strings.Contains(ua.OS(), "Android") && !strings.Contains(raw, "Mobile")
}

// DeviceType folds the classifier flags into the stored category. Desktop is
// the fallback for anything neither mobile nor tablet.
func DeviceType(info UserAgentInfo) string {
	switch {
	case info.IsMobile:
		return models.DeviceMobile
	case info.IsTablet:
		return models.DeviceTablet
	default:
		return models.DeviceDesktop
	}
}
