// Package log provides the slog setup used by scanwatch.
//
// SecureHandler wraps any slog.Handler and masks credentials before a record
// is written:
//   - values of credential-like keys (authorization, cookie, token, api key, ...)
//   - header maps, whose credential-like entries are masked individually
//   - bearer, basic and JWT-looking values under any key
//   - the password part of URLs carrying userinfo
//
// API tokens usually reach the client through the configuration file's
// headers section, so masking applies in verbose mode as well.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
