// Package identifier normalizes gateway chat identifiers into canonical form.
// Raw identifiers may carry device-multiplexing suffixes ("5551234:14@s.whatsapp.net")
// and routing annotations ("A in B") that have to be stripped before an
// identifier can be used as a stable source id.
package identifier

import "strings"

const (
	// DirectSuffix marks a direct (person-to-person) chat address.
	DirectSuffix = "@s.whatsapp.net"
	// GroupSuffix marks a group chat address.
	GroupSuffix = "@g.us"
	// NewsletterSuffix marks a broadcast/newsletter chat address.
	NewsletterSuffix = "@newsletter"

	routingSeparator = " in "
)

// From selects the sending side of a raw identifier. For annotated
// identifiers like "A in B" the segment before " in " is the sender.
func From(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	if before, _, found := strings.Cut(raw, routingSeparator); found {
		return cleanup(before)
	}
	return cleanup(raw)
}

// To selects the receiving side of a raw identifier. For annotated
// identifiers like "A in B" the segment after " in " is the destination;
// if that segment is empty the sender segment is used as a fallback.
func To(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	if before, after, found := strings.Cut(raw, routingSeparator); found {
		if result := cleanup(after); result != "" {
			return result
		}
		return cleanup(before)
	}
	return cleanup(raw)
}

// HasRouting reports whether the raw identifier carries an "A in B" annotation.
func HasRouting(raw string) bool {
	return strings.Contains(raw, routingSeparator)
}

// ExtractNumber reduces an identifier to its bare digits: everything from
// '@' onward is dropped, a device suffix after ':' is dropped, and any
// remaining non-digit characters are removed. Blank input yields "".
func ExtractNumber(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	number, _, _ := strings.Cut(raw, "@")
	number, _, _ = strings.Cut(number, ":")
	var digits strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String()
}

// IsGroup reports whether the identifier addresses a group chat.
func IsGroup(identifier string) bool {
	return strings.Contains(identifier, GroupSuffix)
}

// IsDirect reports whether the identifier addresses a direct chat.
func IsDirect(identifier string) bool {
	return strings.Contains(identifier, DirectSuffix)
}

// IsNewsletter reports whether the identifier addresses a broadcast channel.
func IsNewsletter(identifier string) bool {
	return strings.Contains(identifier, NewsletterSuffix)
}

// cleanup removes a device-multiplexing suffix like ":14" that appears
// between the number and the domain suffix.
func cleanup(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return identifier
	}
	if strings.Contains(identifier, ":") && strings.Contains(identifier, "@") {
		number, _, _ := strings.Cut(identifier, ":")
		_, domain, _ := strings.Cut(identifier, "@")
		return number + "@" + domain
	}
	return identifier
}
