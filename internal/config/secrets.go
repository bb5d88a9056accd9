package config

import "strings"

// RedactedConfig returns a copy of cfg with credentials replaced by "***" so
// the active configuration can be logged at startup.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redactURI(&out.Mongo.URI)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Receipts.SigningKey)
	redact(&out.Receipts.SigningKeyPassword)
	redact(&out.Entropy.ExplorerAPIKey)
	redactURI(&out.Entropy.RPCURL)
	redact(&out.Server.APIKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Slices share backing arrays with the original.
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

// redactURI keeps the scheme of a connection URI so operators can still tell
// which endpoint kind is configured. RPC URLs commonly embed API keys in the
// path, so everything after the scheme is hidden.
func redactURI(s *string) {
	if *s == "" {
		return
	}
	if i := strings.Index(*s, "://"); i >= 0 {
		*s = (*s)[:i+3] + redacted
		return
	}
	*s = redacted
}
