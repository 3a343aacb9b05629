package routing

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// OverflowRegion receives sessions whose region is unknown or unserved.
const OverflowRegion = "National"

var regionCodes = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"DC": "District of Columbia", "FL": "Florida", "GA": "Georgia", "HI": "Hawaii",
	"ID": "Idaho", "IL": "Illinois", "IN": "Indiana", "IA": "Iowa",
	"KS": "Kansas", "KY": "Kentucky", "LA": "Louisiana", "ME": "Maine",
	"MD": "Maryland", "MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota",
	"MS": "Mississippi", "MO": "Missouri", "MT": "Montana", "NE": "Nebraska",
	"NV": "Nevada", "NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico",
	"NY": "New York", "NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio",
	"OK": "Oklahoma", "OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island",
	"SC": "South Carolina", "SD": "South Dakota", "TN": "Tennessee", "TX": "Texas",
	"UT": "Utah", "VT": "Vermont", "VA": "Virginia", "WA": "Washington",
	"WV": "West Virginia", "WI": "Wisconsin", "WY": "Wyoming",
	"US": OverflowRegion,
}

// Regions resolves region names, postal codes and group aliases.
type Regions struct {
	byName map[string]string // folded name -> canonical name
	byCode map[string]string // folded code -> canonical name
	// names sorted longest first so "West Virginia" wins over "Virginia".
	names  []string
	groups map[string]string // canonical region -> group
}

// NewRegions builds the region table. groups maps canonical region names to
// the pod group serving them; regions without an entry use their own name.
func NewRegions(groups map[string]string) *Regions {
	r := &Regions{
		byName: make(map[string]string),
		byCode: make(map[string]string),
		groups: make(map[string]string),
	}
	for code, name := range regionCodes {
		r.byCode[r.normalize(code)] = name
		r.byName[r.normalize(name)] = name
	}
	for name := range r.byName {
		r.names = append(r.names, name)
	}
	sort.Slice(r.names, func(i, j int) bool {
		if len(r.names[i]) != len(r.names[j]) {
			return len(r.names[i]) > len(r.names[j])
		}
		return r.names[i] < r.names[j]
	})

	for region, group := range groups {
		canonical, ok := r.Canonical(region)
		if !ok {
			canonical = region
		}
		r.groups[canonical] = group
	}
	return r
}

// normalize folds case, drops punctuation and collapses whitespace. A Caser
// is stateful, so one is made per call.
func (r *Regions) normalize(s string) string {
	folded := cases.Fold().String(s)
	var b strings.Builder
	space := false
	for _, c := range folded {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(c)
		case unicode.IsSpace(c) || c == '-' || c == '_':
			space = true
		}
	}
	return b.String()
}

// Canonical resolves an exact region name or postal code.
func (r *Regions) Canonical(s string) (string, bool) {
	n := r.normalize(s)
	if name, ok := r.byName[n]; ok {
		return name, true
	}
	if name, ok := r.byCode[n]; ok {
		return name, true
	}
	return "", false
}

// Parse finds the region a user named in free text. An exact name or code
// wins; otherwise the longest region name contained in the text is used.
// Bare codes inside sentences are ignored since words like "in" or "me"
// would collide with them.
func (r *Regions) Parse(text string) (string, bool) {
	if name, ok := r.Canonical(text); ok {
		return name, true
	}
	padded := " " + r.normalize(text) + " "
	for _, n := range r.names {
		if strings.Contains(padded, " "+n+" ") {
			return r.byName[n], true
		}
	}
	return "", false
}

// Group returns the registry grouping key for a region or alias. Unknown
// names are used verbatim.
func (r *Regions) Group(regionOrAlias string) string {
	name, ok := r.Canonical(regionOrAlias)
	if !ok {
		name = strings.TrimSpace(regionOrAlias)
	}
	if group, ok := r.groups[name]; ok {
		return group
	}
	return name
}

// Code returns the postal code for a canonical region name.
func (r *Regions) Code(region string) string {
	for code, name := range regionCodes {
		if name == region {
			return code
		}
	}
	return ""
}
