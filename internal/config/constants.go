package config

import "time"

// Application constants
const (
	// Application Info
	AppName   = "TellCo Usage EDA"
	AppVendor = "TellCo"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Network Timeouts
	DefaultHTTPTimeout    = 30 * time.Second
	DefaultRequestTimeout = 2 * time.Minute

	// File Paths (relative to the base directory)
	DefaultDataDir    = "data"
	DefaultLogsDir    = "logs"
	DefaultReportsDir = "data/reports"
	DefaultHistoryDB  = "data/runs.db"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Analysis
	DefaultTopN           = 10
	DefaultDivisionPolicy = "missing"
	DefaultHistogramBins  = 30
	DefaultMaxFileSize    = 512 * 1024 * 1024 // 512MB
	DefaultRunHistory     = 20
	MaxRunHistory         = 500

	// API Endpoints
	APIBasePath      = "/api"
	HealthEndpoint   = "/api/health"
	DatasetsEndpoint = "/api/datasets"
	RunsEndpoint     = "/api/runs"
	MetricsEndpoint  = "/metrics"
)

// SupportedExtensions lists the dataset file extensions the loader accepts
var SupportedExtensions = []string{".csv", ".xlsx", ".xls"}
