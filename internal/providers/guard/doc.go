// Package guard decides whether an external URL may be fetched.
//
// Validation is purely textual: the scheme must be http or https, an IP
// literal host must not fall in a private, loopback or link-local range,
// and the host must not equal or sit under a blacklisted domain. No DNS
// lookup is performed, so a public name that later resolves to a private
// address is not caught here.
//
// Example Usage:
//
//	g := guard.New(cfg.Guard.BlacklistedDomains, logger)
//	if v := g.Validate(raw); !v.Valid {
//	    return v.Err()
//	}
package guard
