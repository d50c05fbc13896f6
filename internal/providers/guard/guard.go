package guard

import (
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// Reason classifies a rejection.
type Reason string

const (
	ReasonBadScheme   Reason = "bad-scheme"
	ReasonPrivateIP   Reason = "private-ip"
	ReasonBlacklisted Reason = "blacklisted-domain"
)

const (
	msgBadScheme   = "Invalid URL format. Must be http:// or https://"
	msgPrivateIP   = "Private IP addresses are not allowed (security restriction)"
	msgBlacklisted = "This domain is blacklisted (banking/payment sites cannot be proxied)"
)

// DefaultBlacklist holds domains that are always refused.
var DefaultBlacklist = []string{
	"bankofamerica.com",
	"chase.com",
	"wellsfargo.com",
	"citibank.com",
	"paypal.com",
	"stripe.com",
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// ErrRejected is matched by every *Rejection.
var ErrRejected = errors.New("url rejected")

// Rejection is the error form of a negative Verdict.
type Rejection struct {
	Reason  Reason
	Message string
	URL     string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func (r *Rejection) Is(target error) bool {
	return target == ErrRejected
}

// Verdict is the outcome of Validate. It is computed per call and never cached.
type Verdict struct {
	Valid   bool
	Reason  Reason
	Message string
	URL     *url.URL
}

// Err returns nil for a valid verdict and a *Rejection otherwise.
func (v Verdict) Err() error {
	if v.Valid {
		return nil
	}
	raw := ""
	if v.URL != nil {
		raw = v.URL.String()
	}
	return &Rejection{Reason: v.Reason, Message: v.Message, URL: raw}
}

// Guard validates target URLs against scheme, address and domain policy.
type Guard struct {
	exact    map[string]struct{}
	patterns []string
	logger   *zap.Logger
}

// New builds a guard from extra blacklist entries merged with DefaultBlacklist.
// Entries containing glob metacharacters are matched with doublestar.
func New(blacklist []string, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Guard{
		exact:  make(map[string]struct{}),
		logger: logger,
	}
	for _, entry := range append(append([]string{}, DefaultBlacklist...), blacklist...) {
		entry = normalizeHost(entry)
		if entry == "" {
			continue
		}
		if strings.ContainsAny(entry, "*?[{") {
			if doublestar.ValidatePattern(entry) {
				g.patterns = append(g.patterns, entry)
			} else {
				logger.Warn("Ignoring invalid blacklist pattern", zap.String("pattern", entry))
			}
			continue
		}
		g.exact[entry] = struct{}{}
	}
	return g
}

// Validate checks raw without any network I/O.
func (g *Guard) Validate(raw string) Verdict {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return g.reject(raw, nil, ReasonBadScheme, msgBadScheme)
	}

	host := normalizeHost(u.Hostname())
	if isPrivate(host) {
		return g.reject(raw, u, ReasonPrivateIP, msgPrivateIP)
	}
	if g.blacklisted(host) {
		return g.reject(raw, u, ReasonBlacklisted, msgBlacklisted)
	}

	return Verdict{Valid: true, URL: u}
}

// Blacklisted reports whether host equals or is a subdomain of a blacklisted entry.
func (g *Guard) Blacklisted(host string) bool {
	return g.blacklisted(normalizeHost(host))
}

func (g *Guard) blacklisted(host string) bool {
	for h := host; h != ""; {
		if _, ok := g.exact[h]; ok {
			return true
		}
		i := strings.IndexByte(h, '.')
		if i < 0 {
			break
		}
		h = h[i+1:]
	}
	for _, p := range g.patterns {
		if ok, _ := doublestar.Match(p, host); ok {
			return true
		}
	}
	return false
}

func (g *Guard) reject(raw string, u *url.URL, reason Reason, msg string) Verdict {
	g.logger.Warn("URL rejected",
		zap.String("url", raw),
		zap.String("reason", string(reason)))
	return Verdict{Reason: reason, Message: msg, URL: u}
}

// IsPrivateHost reports whether host is an IP literal in a private,
// loopback or link-local range.
func IsPrivateHost(host string) bool {
	return isPrivate(normalizeHost(host))
}

func isPrivate(host string) bool {
	addr, err := netip.ParseAddr(strings.TrimSuffix(strings.TrimPrefix(host, "["), "]"))
	if err != nil {
		a, ok := parseLegacyIPv4(host)
		if !ok {
			return false
		}
		addr = a
	}
	addr = addr.Unmap().WithZone("")
	for _, p := range privateRanges {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// parseLegacyIPv4 accepts the inet_aton spellings that some resolvers
// honour: "2130706433", "0x7f.1", "0177.0.0.1".
func parseLegacyIPv4(host string) (netip.Addr, bool) {
	parts := strings.Split(host, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return netip.Addr{}, false
	}
	nums := make([]uint64, len(parts))
	for i, p := range parts {
		if p == "" {
			return netip.Addr{}, false
		}
		n, err := strconv.ParseUint(p, 0, 32)
		if err != nil {
			return netip.Addr{}, false
		}
		nums[i] = n
	}

	var v uint64
	last := len(nums) - 1
	for i := 0; i < last; i++ {
		if nums[i] > 0xff {
			return netip.Addr{}, false
		}
		v |= nums[i] << (24 - 8*uint(i))
	}
	if nums[last] >= 1<<(8*uint(4-last)) {
		return netip.Addr{}, false
	}
	v |= nums[last]

	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}), true
}

func normalizeHost(h string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), ".")
}
