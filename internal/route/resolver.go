package route

import "github.com/kworr/smtp2tg/internal/config"

// Result classifies how a recipient address was resolved.
type Result string

const (
	// ResultMatch means the address matched a routing table entry.
	ResultMatch Result = "match"
	// ResultRelay means the address was unknown and relayed to the default
	// destination.
	ResultRelay Result = "relay"
	// ResultDeny means the address was unknown and the deny policy rejected it.
	ResultDeny Result = "deny"
)

// Outcome is the accept/reject decision and resolved destination for one
// recipient address. Denied recipients carry Accepted=false and no meaningful
// Destination.
type Outcome struct {
	Address     string
	Destination Destination
	Accepted    bool
	Result      Result
}

// Resolve maps a recipient address to a destination. It is a pure function
// over the table contents and safe for concurrent use.
//
// Lookup order:
//  1. The address exactly as given (lowercased). An explicit full-address key
//     always wins, even when its domain is not in the domain list.
//  2. For a qualified address whose domain is in the domain list, the bare
//     local part, so aliases can be stored without a domain.
//  3. For an unqualified address, local@domain for each configured domain in
//     declared order; the first domain that yields a match wins.
//  4. No match: the unknown policy decides between the default destination
//     (relay) and rejection (deny).
func (t *Table) Resolve(address string) Outcome {
	addr := normalize(address)
	local, domain := splitAddress(addr)

	if dest, ok := t.recipients[addr]; ok {
		return Outcome{Address: addr, Destination: dest, Accepted: true, Result: ResultMatch}
	}

	if domain != "" {
		if t.hasDomain(domain) {
			if dest, ok := t.recipients[local]; ok {
				return Outcome{Address: addr, Destination: dest, Accepted: true, Result: ResultMatch}
			}
		}
	} else {
		for _, d := range t.domains {
			if dest, ok := t.recipients[local+"@"+d]; ok {
				return Outcome{Address: addr, Destination: dest, Accepted: true, Result: ResultMatch}
			}
		}
	}

	if t.unknown == config.UnknownRelay {
		return Outcome{Address: addr, Destination: t.def, Accepted: true, Result: ResultRelay}
	}
	return Outcome{Address: addr, Accepted: false, Result: ResultDeny}
}

func (t *Table) hasDomain(domain string) bool {
	for _, d := range t.domains {
		if d == domain {
			return true
		}
	}
	return false
}
