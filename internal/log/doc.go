// Package log builds rufus's slog logger.
//
// Every record passes through SecureHandler, which keeps the oracle's API
// key out of the logs: attributes named like a credential (api_key,
// Authorization, anything with "token" or "secret") are masked whole, and
// "sk-" keys, bearer credentials and URL passwords are cut out of messages,
// strings and errors while the rest of the text stays readable.
//
//	logger := log.NewLogger(os.Stderr, verbose, false)
//	logger.Error("embedding failed", "error", err) // Bearer ***REDACTED***
package log
