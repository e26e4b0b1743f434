package checkout

import (
	"strings"
	"time"
)

const maxCardDigits = 16

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCardNumber strips non-digits, keeps at most 16 digits and groups
// them in blocks of four separated by spaces.
func NormalizeCardNumber(s string) string {
	d := digits(s)
	if len(d) > maxCardDigits {
		d = d[:maxCardDigits]
	}
	var b strings.Builder
	for i := 0; i < len(d); i += 4 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(d[i:min(i+4, len(d))])
	}
	return b.String()
}

// NormalizeExpiry turns digit input such as "0427" or "04/27" into "04/27".
// Inputs with fewer than two digits are returned digit-stripped.
func NormalizeExpiry(s string) string {
	d := digits(s)
	if len(d) < 2 {
		return d
	}
	if len(d) > 4 {
		d = d[:4]
	}
	return d[:2] + "/" + d[2:]
}

// luhnValid reports whether the digit string passes the Luhn checksum.
func luhnValid(d string) bool {
	if len(d) < 12 {
		return false
	}
	sum := 0
	double := false
	for i := len(d) - 1; i >= 0; i-- {
		n := int(d[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

// expiryValid checks an "MM/YY" value and that the card has not expired by now.
func expiryValid(exp string, now time.Time) (valid, expired bool) {
	if len(exp) != 5 || exp[2] != '/' {
		return false, false
	}
	month := int(exp[0]-'0')*10 + int(exp[1]-'0')
	year := 2000 + int(exp[3]-'0')*10 + int(exp[4]-'0')
	if month < 1 || month > 12 {
		return false, false
	}
	// A card is valid through the last day of its expiry month.
	endOfMonth := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return true, !now.Before(endOfMonth)
}
