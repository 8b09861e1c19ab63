package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN
//	-s string   editor token secret
//	-x string   ArchivesSpace backend URL
//	-n string   ArchivesSpace username
//	-w string   ArchivesSpace password
//	-r int      ArchivesSpace repository id
//	-t int      ArchivesSpace call timeout, seconds
//	-j int      publish propagation concurrency
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   log backend (slog, zap)
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-s", "-x", "-n", "-w", "-r", "-t", "-j", "-u", "-p", "-b", "-g", "-e", "-o", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.EditorSecret, "s", config.EditorSecret, "editor token secret")

	fs.StringVar(&config.ASpaceBaseURL, "x", config.ASpaceBaseURL, "ArchivesSpace backend URL")
	fs.StringVar(&config.ASpaceUsername, "n", config.ASpaceUsername, "ArchivesSpace username")
	fs.StringVar(&config.ASpacePassword, "w", config.ASpacePassword, "ArchivesSpace password")
	fs.IntVar(&config.ASpaceRepoID, "r", config.ASpaceRepoID, "ArchivesSpace repository id")
	externalTimeout := fs.Int("t", int(config.ExternalTimeout.Seconds()), "ArchivesSpace call timeout (in seconds)")
	fs.IntVar(&config.PropagationConcurrency, "j", config.PropagationConcurrency, "publish propagation concurrency")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.LogBackend, "o", config.LogBackend, "log backend (slog, zap)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name != "t" {
			return
		}
		if *externalTimeout <= 0 {
			panic(fmt.Errorf("invalid value %d for flag -t: timeout must be positive", *externalTimeout))
		}
		config.ExternalTimeout = time.Duration(*externalTimeout) * time.Second
	})
}
