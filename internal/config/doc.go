// Package config provides centralized configuration for the usage analysis
// tools: the HTTP server, logging, file locations, pipeline tuning and the
// column schema of the input files.
//
// # Configuration Sources
//
// Configuration is assembled in increasing order of precedence:
//
//	1. Default values (Default)
//	2. A YAML file: $TELCO_CONFIG_FILE, or config.yaml / configs/config.yaml
//	3. Environment variables
//
// # Environment Variables
//
// All environment variables follow the pattern TELCO_<SECTION>_<FIELD>:
//
//	TELCO_SERVER_PORT=8080
//	TELCO_LOGGING_LEVEL=debug
//	TELCO_PATHS_DATA_DIR=/srv/xdr
//	TELCO_ANALYSIS_TOP_N=10
//	TELCO_ANALYSIS_DIVISION_POLICY=missing
//
// # Schema
//
// The physical column names of the input file are described by a schema
// (see LoadSchema). The default matches the TellCo xDR export:
//
//	label: Last Location Name
//	total_download: Total DL (Bytes)
//	total_upload: Total UL (Bytes)
//	services:
//	  - name: Youtube
//	    download: Youtube DL (Bytes)
//	    upload: Youtube UL (Bytes)
//
// # Paths
//
// Relative paths resolve against paths.base_dir, or the directory of the
// running executable when it is unset (see PathsConfig.Resolve).
package config
