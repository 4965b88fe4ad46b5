// Package route implements the routing table and recipient resolution for
// the relay. A Table maps recipient addresses, qualified or bare, to Telegram
// chat destinations. Tables are immutable once built; concurrent readers
// share them without locking and reloads publish a fresh Table through Store.
package route

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kworr/smtp2tg/internal/config"
)

// Destination identifies a delivery target on the chat backend. The value is
// opaque to the relay and forwarded verbatim; negative values conventionally
// address group chats but nothing here depends on the sign.
type Destination int64

// Table is an immutable routing table. Build one with FromConfig.
type Table struct {
	domains    []string
	recipients map[string]Destination
	def        Destination
	unknown    config.UnknownPolicy
	fields     []string
}

var domainPattern = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// FromConfig builds a Table from a parsed configuration. It refuses to build
// a table from invalid input: bad domains, an invalid unknown policy, empty
// recipient keys or zero-valued recipient destinations all fail with a
// descriptive error.
func FromConfig(cfg *config.Config) (*Table, error) {
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("routing table: at least one domain is required")
	}

	domains := make([]string, 0, len(cfg.Domains))
	seen := make(map[string]bool, len(cfg.Domains))
	for _, d := range cfg.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if !domainPattern.MatchString(d) {
			return nil, fmt.Errorf("routing table: invalid domain %q", d)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		domains = append(domains, d)
	}

	switch cfg.Unknown {
	case config.UnknownRelay, config.UnknownDeny:
	default:
		return nil, fmt.Errorf("routing table: invalid unknown policy %q", cfg.Unknown)
	}

	recipients := make(map[string]Destination, len(cfg.Recipients))
	for addr, id := range cfg.Recipients {
		key := normalize(addr)
		if key == "" {
			return nil, fmt.Errorf("routing table: empty recipient address")
		}
		if id == 0 {
			return nil, fmt.Errorf("routing table: recipient %q maps to chat id 0", addr)
		}
		if prev, ok := recipients[key]; ok && prev != Destination(id) {
			return nil, fmt.Errorf("routing table: duplicate recipient %q", key)
		}
		recipients[key] = Destination(id)
	}

	fields := make([]string, len(cfg.Fields))
	for i, f := range cfg.Fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}

	return &Table{
		domains:    domains,
		recipients: recipients,
		def:        Destination(cfg.Default),
		unknown:    cfg.Unknown,
		fields:     fields,
	}, nil
}

// Domains returns the configured domain list in declared order.
func (t *Table) Domains() []string {
	return t.domains
}

// Default returns the destination used for unknown recipients under the
// relay policy.
func (t *Table) Default() Destination {
	return t.def
}

// Policy returns the unknown-recipient policy.
func (t *Table) Policy() config.UnknownPolicy {
	return t.unknown
}

// Fields returns the ordered list of header fields surfaced in outbound
// messages.
func (t *Table) Fields() []string {
	return t.fields
}

// normalize lowercases an address and strips surrounding whitespace and
// angle brackets.
func normalize(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.TrimPrefix(addr, "<")
	addr = strings.TrimSuffix(addr, ">")
	return strings.ToLower(addr)
}

// splitAddress splits an address into local part and domain. The domain is
// empty for unqualified addresses.
func splitAddress(addr string) (local, domain string) {
	if idx := strings.LastIndex(addr, "@"); idx >= 0 {
		return addr[:idx], addr[idx+1:]
	}
	return addr, ""
}
