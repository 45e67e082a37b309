// Package config loads runtime configuration for the lotkeeper client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so they can be strings like "5m" or integer
// nanoseconds:
//
//	{
//	  "remote_dsn": "postgres://lotkeeper:secret@db:5432/lotkeeper",
//	  "s3_endpoint": "http://minio:9000",
//	  "s3_bucket": "photos",
//	  "local_store_path": "/var/lib/lotkeeper/cache.db",
//	  "company_id": "5b0c...",
//	  "online_check_interval": "3s",
//	  "sync_interval": "5m",
//	  "workers": 4,
//	  "log_file": "/var/log/lotkeeper.log",
//	  "log_level": "debug",
//	  "demo": false
//	}
//
// Environment variables are not read; use the JSON file or flags.
package config
