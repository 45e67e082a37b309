package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lotkeeper/internal/flagx"
	"github.com/dmitrijs2005/lotkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration so they can be written as "3s" or as integer nanoseconds.
type JsonConfig struct {
	RemoteDSN           string         `json:"remote_dsn"`
	S3Endpoint          string         `json:"s3_endpoint"`
	S3Region            string         `json:"s3_region"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	LocalStorePath      string         `json:"local_store_path"`
	CompanyID           string         `json:"company_id"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	Workers             int            `json:"workers"`
	LogFile             string         `json:"log_file"`
	LogLevel            string         `json:"log_level"`
	Demo                *bool          `json:"demo"`
}

// parseJson overlays cfg with the values present in the JSON file named by
// -c or -config. Keys missing from the file keep their current value. Read or
// decode failures panic, as configuration errors are fatal at startup.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.RemoteDSN, jc.RemoteDSN)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.LocalStorePath, jc.LocalStorePath)
	setString(&cfg.CompanyID, jc.CompanyID)
	setString(&cfg.LogFile, jc.LogFile)
	setString(&cfg.LogLevel, jc.LogLevel)

	if jc.OnlineCheckInterval.Duration > 0 {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.SyncInterval.Duration > 0 {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.Workers > 0 {
		cfg.Workers = jc.Workers
	}
	if jc.Demo != nil {
		cfg.Demo = *jc.Demo
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
