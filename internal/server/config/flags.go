package config

import (
	"flag"
	"os"
	"time"

	"github.com/mpavlenko/docketsync/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-q int      max cases per owner
//	-n int      max dates per case
//	-p int      max case/date changes per push
//	-l int      max array length per push
//	-e bool     enable at-rest envelope encryption
//	-k bool     include per-record acknowledgements in push responses
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-q", "-n", "-p", "-l", "-e", "-k"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	fs.IntVar(&config.MaxCasesPerOwner, "q", config.MaxCasesPerOwner, "max cases per owner")
	fs.IntVar(&config.MaxDatesPerCase, "n", config.MaxDatesPerCase, "max dates per case")

	maxPush := fs.Int("p", config.MaxCaseChangesPerPush, "max changes per entity type per push")
	fs.IntVar(&config.MaxArrayLenPerPush, "l", config.MaxArrayLenPerPush, "max array length per push")

	fs.BoolVar(&config.EncryptionEnabled, "e", config.EncryptionEnabled, "enable field encryption at rest")
	fs.BoolVar(&config.AckApplied, "k", config.AckApplied, "report per-record push acknowledgements")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute

	// -p sets both per-type ceilings; leave JSON-provided values alone when
	// the flag was not passed.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "p" {
			config.MaxCaseChangesPerPush = *maxPush
			config.MaxDateChangesPerPush = *maxPush
		}
	})
}
