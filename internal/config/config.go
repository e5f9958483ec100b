// Package config provides configuration management for the court crawler.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPortalURL is the case-status search page driven by the browser.
	DefaultPortalURL = "https://services.ecourts.gov.in/ecourtindia_v6/?p=casestatus"
	// DefaultPortalAPIURL is the base of the portal's AJAX endpoints.
	DefaultPortalAPIURL = "https://services.ecourts.gov.in/ecourtindia_v6/"
)

// Config holds all configuration for the crawler.
type Config struct {
	// Portal settings
	PortalURL    string
	PortalAPIURL string
	HTTPTimeout  time.Duration

	// Datastore
	DatabaseURL       string
	DatabaseAuthToken string

	// Browser settings
	ChromePath string
	Headless   bool

	// Launch retry policy
	LaunchAttempts   int
	LaunchBackoffMin time.Duration
	LaunchBackoffMax time.Duration

	// Wait budgets for the remote page
	ElementTimeout     time.Duration
	RepopulateTimeout  time.Duration
	EstablishmentWait  time.Duration
	NetworkIdleTimeout time.Duration

	// Search form defaults
	SectionNumber string
	CaseStatus    string

	// CAPTCHA settings
	CaptchaPath      string
	TesseractPath    string
	TwoCaptchaAPIKey string

	// Read-only API
	Port     int
	LogLevel string
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		PortalURL:          getEnv("PORTAL_URL", DefaultPortalURL),
		PortalAPIURL:       getEnv("PORTAL_API_URL", DefaultPortalAPIURL),
		HTTPTimeout:        getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		DatabaseURL:        getEnv("DATABASE_URL", "jd-master-db.db"),
		DatabaseAuthToken:  getEnv("DATABASE_AUTH_TOKEN", ""),
		ChromePath:         getEnv("CHROME_PATH", ""),
		Headless:           getEnvBool("HEADLESS", true),
		LaunchAttempts:     getEnvInt("LAUNCH_ATTEMPTS", 5),
		LaunchBackoffMin:   getEnvDuration("LAUNCH_BACKOFF_MIN", 2*time.Second),
		LaunchBackoffMax:   getEnvDuration("LAUNCH_BACKOFF_MAX", 10*time.Second),
		ElementTimeout:     getEnvDuration("ELEMENT_TIMEOUT", 15*time.Second),
		RepopulateTimeout:  getEnvDuration("REPOPULATE_TIMEOUT", 10*time.Second),
		EstablishmentWait:  getEnvDuration("ESTABLISHMENT_WAIT", 3*time.Second),
		NetworkIdleTimeout: getEnvDuration("NETWORK_IDLE_TIMEOUT", 30*time.Second),
		SectionNumber:      getEnv("SECTION_NUMBER", "302"),
		CaseStatus:         getEnv("CASE_STATUS", "Pending"),
		CaptchaPath:        getEnv("CAPTCHA_PATH", filepath.Join(os.TempDir(), "ecourts-captcha.png")),
		TesseractPath:      getEnv("TESSERACT_PATH", "tesseract"),
		TwoCaptchaAPIKey:   getEnv("TWOCAPTCHA_API_KEY", ""),
		Port:               getEnvInt("PORT", 8192),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultVal
	}
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
