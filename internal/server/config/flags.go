package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/citygate/internal/flagx"
)

// parseFlags applies the flags below on top of config. Other arguments are
// ignored so the binary can share its command line with -c.
//
//	-a string    HTTP listen address
//	-g string    gRPC health listen address
//	-d string    database DSN ("memory" for the in-memory store)
//	-k string    token signing secret
//	-t duration  token validity
//	-hash string password hash algorithm (bcrypt|argon2id)
//	-r int       login/register requests per minute per IP (0 disables)
//	-l string    log level
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-k", "-t", "-hash", "-r", "-l"})

	fs := flag.NewFlagSet("auth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP listen address")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC health listen address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "token signing secret")
	fs.DurationVar(&config.TokenValidityDuration, "t", config.TokenValidityDuration, "token validity")
	fs.StringVar(&config.PasswordHashAlgorithm, "hash", config.PasswordHashAlgorithm, "password hash algorithm")
	fs.IntVar(&config.LoginRateLimit, "r", config.LoginRateLimit, "login rate limit per minute")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	return fs.Parse(args)
}
