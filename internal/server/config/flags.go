package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/blindauth/internal/flagx"
)

var knownFlags = []string{
	"-a", "-l", "-d", "-s", "-t", "-r", "-v", "-w", "-n",
	"-u", "-p", "-b", "-g", "-e",
	"-issuer", "-audience", "-base-url", "-nats", "-redis", "-otlp", "-log-level",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string    gRPC bind address (e.g., ":50051")
//	-l string    HTTP ops bind address (e.g., ":8080")
//	-d string    PostgreSQL DSN
//	-s string    access token HMAC secret key
//	-t duration  access token validity
//	-r duration  refresh token validity
//	-v duration  verification token validity
//	-w duration  verification resend cooldown
//	-n string    notifier: log, s3 or nats
//	-u/-p/-b/-g/-e  S3 user, password, bucket, region, base endpoint
//	-issuer, -audience, -base-url, -nats, -redis, -otlp, -log-level
//
// args are filtered with flagx.FilterArgs first so flags owned by other
// components (such as -c) do not cause parse errors.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.EndpointAddrHTTP, "l", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	fs.DurationVar(&config.AccessTokenValidityDuration, "t", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "r", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.DurationVar(&config.VerificationTokenValidityDuration, "v", config.VerificationTokenValidityDuration, "verification token validity")
	fs.DurationVar(&config.ResendCooldown, "w", config.ResendCooldown, "verification resend cooldown")

	fs.StringVar(&config.Notifier, "n", config.Notifier, "notifier (log, s3, nats)")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.Issuer, "issuer", config.Issuer, "token issuer")
	fs.StringVar(&config.Audience, "audience", config.Audience, "token audience")
	fs.StringVar(&config.VerificationBaseURL, "base-url", config.VerificationBaseURL, "verification link base URL")
	fs.StringVar(&config.NATSURL, "nats", config.NATSURL, "NATS URL")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "Redis address for the login limiter")
	fs.StringVar(&config.OTLPEndpoint, "otlp", config.OTLPEndpoint, "OTLP/HTTP trace endpoint")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level (debug, info, warn, error)")

	return fs.Parse(args)
}
