package redact

import (
	"net/netip"
	"regexp"
	"sort"
	"strings"
)

// detector finds candidates for one entity type. validate is optional and
// receives the matched text. When trim is set and the full match fails
// validation, shorter prefixes cut at separators are tried from the right.
type detector struct {
	typ        EntityType
	re         *regexp.Regexp
	confidence float64
	validate   func(string) bool
	trim       bool
}

var (
	ibanPattern  = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:[ ]?[A-Z0-9]{4}){2,7}(?:[ ]?[A-Z0-9]{1,3})?\b`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	urlCredsPat  = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.-]*://[^\s:/@]+:[^\s@/]+@[^\s/?#]+`)
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ninoPattern  = regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z][A-CEGHJ-NPR-TW-Z] ?\d{2} ?\d{2} ?\d{2} ?[A-D]\b`)
	taxIDPattern = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{11}\b`)
	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}|\b0\d{1,4}|\(\d{2,5}\))[ ./-]?\d[\d ./-]{4,16}\d\b`)

	datePattern = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$`)
)

// defaultDetectors returns the detectors in declaration order.
func defaultDetectors() []detector {
	return []detector{
		{typ: TypeIBAN, re: ibanPattern, confidence: 0.95, validate: validIBAN, trim: true},
		{typ: TypeCreditCard, re: cardPattern, confidence: 0.95, validate: validCard, trim: true},
		{typ: TypeURLCredentials, re: urlCredsPat, confidence: 0.95, validate: unmaskedCredentials},
		{typ: TypeEmail, re: emailPattern, confidence: 0.90},
		{typ: TypeIPAddress, re: ipv4Pattern, confidence: 0.85, validate: publicIPv4},
		{typ: TypeNationalInsurance, re: ninoPattern, confidence: 0.80, validate: validNINO},
		{typ: TypeTaxID, re: taxIDPattern, confidence: 0.70, validate: validTaxID},
		{typ: TypePhone, re: phonePattern, confidence: 0.70, validate: validPhone},
	}
}

// match returns the end of the longest valid span starting at start. A
// greedy match that swallowed a trailing CVV or reference token is cut back
// at space or hyphen boundaries until it validates.
func (d detector) match(text string, start, end int) (int, bool) {
	if d.validate == nil || d.validate(text[start:end]) {
		return end, true
	}
	if !d.trim {
		return 0, false
	}
	for p := end - 1; p > start; p-- {
		if !isSeparator(text[p]) || isSeparator(text[p-1]) {
			continue
		}
		if d.validate(text[start:p]) {
			return p, true
		}
	}
	return 0, false
}

func isSeparator(c byte) bool { return c == ' ' || c == '-' }

// detect runs the detectors and resolves overlaps. Higher confidence wins;
// equal confidence goes to the detector declared first. The result is
// ordered by start offset.
func detect(text string, detectors []detector) []Entity {
	type candidate struct {
		Entity
		order int
	}

	var candidates []candidate
	for i, d := range detectors {
		for _, loc := range d.re.FindAllStringIndex(text, -1) {
			end, ok := d.match(text, loc[0], loc[1])
			if !ok {
				continue
			}
			candidates = append(candidates, candidate{
				Entity: Entity{
					Type:       d.typ,
					Value:      text[loc[0]:end],
					Start:      loc[0],
					End:        end,
					Confidence: d.confidence,
				},
				order: i,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.order != b.order {
			return a.order < b.order
		}
		return a.Start < b.Start
	})

	var kept []Entity
	for _, c := range candidates {
		clash := false
		for _, k := range kept {
			if c.overlaps(k) {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, c.Entity)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

// ---------------------------------------------------------------------------
// Validators
// ---------------------------------------------------------------------------

var ibanLengths = map[string]int{
	"AT": 20, "BE": 16, "CH": 21, "CZ": 24, "DE": 22, "DK": 18, "ES": 24,
	"FI": 18, "FR": 27, "GB": 22, "IE": 22, "IT": 27, "LU": 20, "NL": 18,
	"NO": 15, "PL": 28, "PT": 25, "SE": 24,
}

// validIBAN checks the country length and the ISO 13616 mod-97 checksum.
func validIBAN(s string) bool {
	iban := strings.ReplaceAll(s, " ", "")
	if want, ok := ibanLengths[iban[:2]]; ok {
		if len(iban) != want {
			return false
		}
	} else if len(iban) < 15 || len(iban) > 34 {
		return false
	}

	// Fold the rearranged string digit by digit so long IBANs never
	// overflow.
	rem := 0
	for _, r := range iban[4:] + iban[:4] {
		switch {
		case r >= '0' && r <= '9':
			rem = (rem*10 + int(r-'0')) % 97
		case r >= 'A' && r <= 'Z':
			rem = (rem*100 + int(r-'A'+10)) % 97
		default:
			return false
		}
	}
	return rem == 1
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// validCard requires 13–19 digits and a passing Luhn checksum.
func validCard(s string) bool {
	d := digitsOf(s)
	if len(d) < 13 || len(d) > 19 {
		return false
	}
	return luhn(d)
}

func luhn(d string) bool {
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

// unmaskedCredentials skips URLs whose userinfo has already been masked.
func unmaskedCredentials(s string) bool {
	return !strings.Contains(s, "://***:***@")
}

// publicIPv4 rejects malformed octets and non-routable ranges.
func publicIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil || !addr.Is4() {
		return false
	}
	if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() ||
		addr.IsMulticast() || addr.IsUnspecified() {
		return false
	}
	b := addr.As4()
	// 100.64.0.0/10 carrier-grade NAT, 0.0.0.0/8, 255.255.255.255
	if b[0] == 100 && b[1]&0xC0 == 64 {
		return false
	}
	return b[0] != 0 && b != [4]byte{255, 255, 255, 255}
}

// validNINO applies the UK prefix exclusions the pattern cannot express.
func validNINO(s string) bool {
	prefix := strings.ToUpper(s[:2])
	switch prefix {
	case "BG", "GB", "KN", "NK", "NT", "TN", "ZZ":
		return false
	}
	return true
}

// validTaxID accepts a US SSN outside the unassigned areas or a German
// Steuer-ID with its digit-frequency rule and ISO 7064 check digit.
func validTaxID(s string) bool {
	if strings.Contains(s, "-") {
		area, group, serial := s[:3], s[4:6], s[7:]
		if area == "000" || area == "666" || area[0] == '9' {
			return false
		}
		return group != "00" && serial != "0000"
	}
	return validSteuerID(s)
}

func validSteuerID(d string) bool {
	if len(d) != 11 || d[0] == '0' {
		return false
	}

	var counts [10]int
	for i := 0; i < 10; i++ {
		counts[d[i]-'0']++
	}
	repeated := 0
	for _, c := range counts {
		switch {
		case c > 3:
			return false
		case c > 1:
			repeated++
		}
	}
	if repeated != 1 {
		return false
	}

	product := 10
	for i := 0; i < 10; i++ {
		sum := (int(d[i]-'0') + product) % 10
		if sum == 0 {
			sum = 10
		}
		product = (sum * 2) % 11
	}
	check := 11 - product
	if check == 10 {
		check = 0
	}
	return check == int(d[10]-'0')
}

// validPhone requires 7–15 digits and rejects date-shaped matches.
func validPhone(s string) bool {
	if datePattern.MatchString(s) {
		return false
	}
	n := len(digitsOf(s))
	return n >= 7 && n <= 15
}
