package services

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"snaplink/internal/config"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"
)

// countryReader is the slice of *geoip2.Reader the lookup depends on.
type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Metadata() maxminddb.Metadata
	Close() error
}

// GeoIPService resolves client addresses to ISO country codes using a
// GeoLite2 database kept current by geoipupdate.
type GeoIPService struct {
	cfg     config.Config
	logger  *slog.Logger
	reader  countryReader
	geoLock sync.RWMutex
	open    func(path string) (countryReader, error)
}

func NewGeoIPService(cfg config.Config, logger *slog.Logger) *GeoIPService {
	return &GeoIPService{
		cfg:    cfg,
		logger: logger,
		open: func(path string) (countryReader, error) {
			return geoip2.Open(path)
		},
	}
}

// Init loads the database from disk, downloading it first when MaxMind
// credentials are configured and the file is missing. Without a database
// every lookup reports the country as absent.
func (s *GeoIPService) Init() {
	dbPath := s.cfg.MaxMindDBPath
	if dbPath == "" {
		s.logger.Warn("GeoIP: no database path configured, lookups disabled")
		return
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if !s.canUpdate() {
			s.logger.Warn("GeoIP: database missing and MaxMind credentials not set, lookups disabled", "path", dbPath)
			return
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			s.logger.Error("GeoIP: failed to create directory", "path", dbPath, "error", err)
			return
		}
		s.logger.Info("GeoIP: database missing, downloading")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("GeoIP: initial download failed", "error", err)
			return
		}
	}

	s.reloadReader(dbPath)
}

func (s *GeoIPService) canUpdate() bool {
	return s.cfg.MaxMindAccountID != "" && s.cfg.MaxMindLicenseKey != ""
}

func (s *GeoIPService) StartUpdater(ctx context.Context) {
	if !s.canUpdate() {
		return
	}
	interval := s.cfg.GeoIPUpdateInterval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("GeoIP: running scheduled update")
			if err := s.updateGeoDB(); err != nil {
				s.logger.Error("GeoIP: update failed", "error", err)
				continue
			}
			s.reloadReader(s.cfg.MaxMindDBPath)
		case <-ctx.Done():
			s.logger.Info("GeoIP: updater stopping")
			return
		}
	}
}

func (s *GeoIPService) updateGeoDB() error {
	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)
	if err := os.WriteFile(confPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	output, err := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir).CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	s.logger.Info("GeoIP: database updated")
	return nil
}

func (s *GeoIPService) reloadReader(path string) {
	reader, err := s.open(path)
	if err != nil {
		s.logger.Error("GeoIP: failed to open database", "path", path, "error", err)
		return
	}

	// The write lock waits for in-flight lookups, so the old reader is never
	// closed underneath one.
	s.geoLock.Lock()
	old := s.reader
	s.reader = reader
	if old != nil {
		old.Close()
	}
	s.geoLock.Unlock()

	meta := reader.Metadata()
	s.logger.Info("GeoIP: loaded database", "type", meta.DatabaseType, "epoch", meta.BuildEpoch)
}

// Lookup returns the ISO 3166-1 alpha-2 code for ipStr. Loopback, private
// and unparseable addresses, and addresses missing from the database, are
// reported as absent.
func (s *GeoIPService) Lookup(ipStr string) (string, bool) {
	ip := net.ParseIP(strings.TrimSpace(ipStr))
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return "", false
	}

	s.geoLock.RLock()
	defer s.geoLock.RUnlock()
	if s.reader == nil {
		return "", false
	}

	record, err := s.reader.Country(ip)
	if err != nil {
		s.logger.Warn("GeoIP: lookup error", "error", err)
		return "", false
	}
	if record == nil || record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

func (s *GeoIPService) Close() {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
}
