package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lotkeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
//	-d string      remote PostgreSQL DSN
//	-s string      S3 endpoint
//	-b string      S3 bucket
//	-l string      local store file
//	-company id    company used for the priority bootstrap
//	-i int         online check interval (seconds)
//	-p int         background sync period (seconds)
//	-w int         background workers
//	-log string    log file (rotated)
//	-demo          use in-memory remotes
//
// os.Args is filtered with flagx.FilterArgs first so flags owned by other
// components do not break parsing.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-s", "-b", "-l", "-company", "-i", "-p", "-w", "-log"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.RemoteDSN, "d", cfg.RemoteDSN, "remote database DSN")
	fs.StringVar(&cfg.S3Endpoint, "s", cfg.S3Endpoint, "S3 endpoint")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket for photos")
	fs.StringVar(&cfg.LocalStorePath, "l", cfg.LocalStorePath, "local store file")
	fs.StringVar(&cfg.CompanyID, "company", cfg.CompanyID, "company to bootstrap")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	syncInterval := fs.Int("p", int(cfg.SyncInterval.Seconds()), "background sync period (in seconds)")
	fs.IntVar(&cfg.Workers, "w", cfg.Workers, "background workers")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second

	if flagx.BoolFlag(os.Args[1:], "-demo") {
		cfg.Demo = true
	}
}
