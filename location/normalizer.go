// Package location extracts a canonical city (plus state/pincode when present)
// from free-text complaint addresses. Pure string work: lookup tables, delimiter
// heuristics, and pincode-anchored inference. Never fails; the worst case is
// city "Unknown".
package location

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Normalized is the result of address normalization
type Normalized struct {
	City        string
	State       string
	Pincode     string
	FullAddress string
}

// cityAliases maps lower-cased spellings (including historical names) to the
// canonical city. Identity entries let canonical spellings match exactly.
var cityAliases = map[string]string{
	"agartala":           "Agartala",
	"agra":               "Agra",
	"ahmedabad":          "Ahmedabad",
	"allahabad":          "Prayagraj",
	"amritsar":           "Amritsar",
	"asansol":            "Asansol",
	"aurangabad":         "Aurangabad",
	"banaras":            "Varanasi",
	"bangalore":          "Bengaluru",
	"baroda":             "Vadodara",
	"belagavi":           "Belagavi",
	"belgaum":            "Belagavi",
	"bengaluru":          "Bengaluru",
	"benares":            "Varanasi",
	"bhopal":             "Bhopal",
	"bhubaneswar":        "Bhubaneswar",
	"bombay":             "Mumbai",
	"calcutta":           "Kolkata",
	"calicut":            "Kozhikode",
	"chandigarh":         "Chandigarh",
	"chennai":            "Chennai",
	"cochin":             "Kochi",
	"coimbatore":         "Coimbatore",
	"cuttack":            "Cuttack",
	"dehradun":           "Dehradun",
	"delhi":              "Delhi",
	"dhanbad":            "Dhanbad",
	"faridabad":          "Faridabad",
	"gangtok":            "Gangtok",
	"gauhati":            "Guwahati",
	"ghaziabad":          "Ghaziabad",
	"guntur":             "Guntur",
	"gurgaon":            "Gurugram",
	"gurugram":           "Gurugram",
	"guwahati":           "Guwahati",
	"gwalior":            "Gwalior",
	"howrah":             "Howrah",
	"hubballi":           "Hubballi",
	"hubli":              "Hubballi",
	"hyderabad":          "Hyderabad",
	"imphal":             "Imphal",
	"indore":             "Indore",
	"jabalpur":           "Jabalpur",
	"jaipur":             "Jaipur",
	"jalandhar":          "Jalandhar",
	"jammu":              "Jammu",
	"jamshedpur":         "Jamshedpur",
	"jodhpur":            "Jodhpur",
	"kanpur":             "Kanpur",
	"kochi":              "Kochi",
	"kolkata":            "Kolkata",
	"kollam":             "Kollam",
	"kota":               "Kota",
	"kozhikode":          "Kozhikode",
	"lucknow":            "Lucknow",
	"ludhiana":           "Ludhiana",
	"madras":             "Chennai",
	"madurai":            "Madurai",
	"mangalore":          "Mangaluru",
	"mangaluru":          "Mangaluru",
	"meerut":             "Meerut",
	"mumbai":             "Mumbai",
	"mysore":             "Mysuru",
	"mysuru":             "Mysuru",
	"nagpur":             "Nagpur",
	"nashik":             "Nashik",
	"nasik":              "Nashik",
	"navi mumbai":        "Navi Mumbai",
	"new delhi":          "Delhi",
	"noida":              "Noida",
	"panaji":             "Panaji",
	"panjim":             "Panaji",
	"patna":              "Patna",
	"pondicherry":        "Puducherry",
	"poona":              "Pune",
	"prayagraj":          "Prayagraj",
	"puducherry":         "Puducherry",
	"pune":               "Pune",
	"raipur":             "Raipur",
	"rajkot":             "Rajkot",
	"ranchi":             "Ranchi",
	"salem":              "Salem",
	"shillong":           "Shillong",
	"shimla":             "Shimla",
	"siliguri":           "Siliguri",
	"solapur":            "Solapur",
	"srinagar":           "Srinagar",
	"surat":              "Surat",
	"thane":              "Thane",
	"thiruvananthapuram": "Thiruvananthapuram",
	"thrissur":           "Thrissur",
	"tiruchirappalli":    "Tiruchirappalli",
	"trichy":             "Tiruchirappalli",
	"trivandrum":         "Thiruvananthapuram",
	"vadodara":           "Vadodara",
	"varanasi":           "Varanasi",
	"vijayawada":         "Vijayawada",
	"visakhapatnam":      "Visakhapatnam",
	"vizag":              "Visakhapatnam",
	"warangal":           "Warangal",
}

// stateNames maps lower-cased state spellings to the canonical state name
var stateNames = map[string]string{
	"andhra pradesh":    "Andhra Pradesh",
	"arunachal pradesh": "Arunachal Pradesh",
	"assam":             "Assam",
	"bihar":             "Bihar",
	"chhattisgarh":      "Chhattisgarh",
	"delhi":             "Delhi",
	"goa":               "Goa",
	"gujarat":           "Gujarat",
	"haryana":           "Haryana",
	"himachal pradesh":  "Himachal Pradesh",
	"jammu and kashmir": "Jammu and Kashmir",
	"jharkhand":         "Jharkhand",
	"karnataka":         "Karnataka",
	"kerala":            "Kerala",
	"ladakh":            "Ladakh",
	"madhya pradesh":    "Madhya Pradesh",
	"maharashtra":       "Maharashtra",
	"manipur":           "Manipur",
	"meghalaya":         "Meghalaya",
	"mizoram":           "Mizoram",
	"nagaland":          "Nagaland",
	"odisha":            "Odisha",
	"orissa":            "Odisha",
	"puducherry":        "Puducherry",
	"punjab":            "Punjab",
	"rajasthan":         "Rajasthan",
	"sikkim":            "Sikkim",
	"tamil nadu":        "Tamil Nadu",
	"telangana":         "Telangana",
	"tripura":           "Tripura",
	"uttar pradesh":     "Uttar Pradesh",
	"uttarakhand":       "Uttarakhand",
	"west bengal":       "West Bengal",
}

// skipWords are structural address words that can never be a city on their own
var skipWords = map[string]bool{
	"apartment": true, "behind": true, "block": true, "building": true,
	"colony": true, "cross": true, "district": true, "extension": true,
	"flat": true, "floor": true, "house": true, "lane": true, "layout": true,
	"main": true, "marg": true, "nagar": true, "near": true, "no": true,
	"number": true, "opp": true, "opposite": true, "phase": true, "plot": true,
	"post": true, "road": true, "sector": true, "stage": true, "street": true,
	"tehsil": true, "village": true, "ward": true,
}

var (
	delimiterRe = regexp.MustCompile(`[,\n\-|]`)
	pincodeRe   = regexp.MustCompile(`\b\d{6}\b`)
	digitsRe    = regexp.MustCompile(`\d+`)

	// sorted alias keys keep containment scans deterministic
	aliasKeys []string
)

func init() {
	aliasKeys = make([]string, 0, len(cityAliases))
	for k := range cityAliases {
		aliasKeys = append(aliasKeys, k)
	}
	sort.Strings(aliasKeys)
}

// Normalize extracts a canonical city, state, and pincode from a free-text
// address. Strategies run in priority order; the first hit wins. Always returns
// a usable result, never panics; empty input yields city "Unknown".
func Normalize(rawAddress string) Normalized {
	result := Normalized{
		City:        "Unknown",
		FullAddress: strings.TrimSpace(rawAddress),
	}
	if result.FullAddress == "" {
		return result
	}

	segments := splitSegments(result.FullAddress)
	result.Pincode = findPincode(result.FullAddress)
	result.State = findState(segments)

	if city, ok := matchAliasInSegments(segments); ok {
		result.City = city
		return result
	}
	if city, ok := matchCityBeforeState(segments); ok {
		result.City = city
		return result
	}
	if city, ok := matchPincodeAnchor(result.FullAddress); ok {
		result.City = city
		return result
	}
	if city, ok := firstMeaningfulSegment(segments); ok {
		result.City = city
		return result
	}
	if city, ok := longestQualifyingSegment(segments); ok {
		result.City = city
	}
	return result
}

// splitSegments breaks the address on comma/newline/hyphen/pipe and trims
func splitSegments(raw string) []string {
	parts := delimiterRe.Split(raw, -1)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// lookupAlias checks one segment against the alias table: exact match first,
// then substring containment in either direction (minimum 3 chars to avoid
// noise matches).
func lookupAlias(segment string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(segment))
	if key == "" {
		return "", false
	}
	if city, ok := cityAliases[key]; ok {
		return city, true
	}
	if len(key) < 3 {
		return "", false
	}
	for _, alias := range aliasKeys {
		if strings.Contains(key, alias) || (len(alias) >= 3 && strings.Contains(alias, key)) {
			return cityAliases[alias], true
		}
	}
	return "", false
}

// matchAliasInSegments is strategy 1: any segment that is (or contains) a known city
func matchAliasInSegments(segments []string) (string, bool) {
	for _, segment := range segments {
		if city, ok := lookupAlias(segment); ok {
			return city, true
		}
	}
	return "", false
}

// matchCityBeforeState is strategy 2: the segment right before a state name is
// the city candidate. Alias hits canonicalize it; otherwise the candidate is
// title-cased as-is.
func matchCityBeforeState(segments []string) (string, bool) {
	for i := 0; i+1 < len(segments); i++ {
		if _, ok := stateOf(segments[i+1]); !ok {
			continue
		}
		candidate := segments[i]
		if city, ok := lookupAlias(candidate); ok {
			return city, true
		}
		if isMeaningful(candidate) {
			return titleCase(candidate), true
		}
	}
	return "", false
}

// matchPincodeAnchor is strategy 3: the last meaningful segment before a
// 6-digit pincode, checked against the alias table.
func matchPincodeAnchor(raw string) (string, bool) {
	loc := pincodeRe.FindStringIndex(raw)
	if loc == nil {
		return "", false
	}
	before := splitSegments(raw[:loc[0]])
	for i := len(before) - 1; i >= 0; i-- {
		if !isMeaningful(before[i]) {
			continue
		}
		if city, ok := lookupAlias(before[i]); ok {
			return city, true
		}
		return "", false
	}
	return "", false
}

// firstMeaningfulSegment is strategy 4: skip structural noise, title-case the
// first survivor.
func firstMeaningfulSegment(segments []string) (string, bool) {
	for _, segment := range segments {
		if isMeaningful(segment) {
			return titleCase(segment), true
		}
	}
	return "", false
}

// longestQualifyingSegment is strategy 5: the longest non-numeric segment of
// at least 3 chars, title-cased.
func longestQualifyingSegment(segments []string) (string, bool) {
	best := ""
	for _, segment := range segments {
		s := strings.TrimSpace(segment)
		if len(s) < 3 || isNumeric(s) || isPincodeShaped(s) {
			continue
		}
		if len(s) > len(best) {
			best = s
		}
	}
	if best == "" {
		return "", false
	}
	return titleCase(best), true
}

// isMeaningful rejects segments that cannot stand alone as a city: purely
// numeric, shorter than 3 chars, pincode-shaped, or made only of structural
// words.
func isMeaningful(segment string) bool {
	s := strings.ToLower(strings.TrimSpace(segment))
	if len(s) < 3 || isNumeric(s) || isPincodeShaped(s) {
		return false
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !skipWords[w] && !isNumeric(w) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if cleaned == "" {
		return false
	}
	_, err := strconv.Atoi(cleaned)
	return err == nil
}

func isPincodeShaped(s string) bool {
	cleaned := strings.TrimSpace(s)
	return len(cleaned) == 6 && isNumeric(cleaned)
}

// stateOf matches a segment against the state table, tolerating an attached
// pincode ("Maharashtra 400001").
func stateOf(segment string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(digitsRe.ReplaceAllString(segment, "")))
	key = strings.Join(strings.Fields(key), " ")
	state, ok := stateNames[key]
	return state, ok
}

// findState returns the first state name found in any segment
func findState(segments []string) string {
	for _, segment := range segments {
		if state, ok := stateOf(segment); ok {
			return state
		}
	}
	return ""
}

// findPincode returns the first 6-digit run in the address
func findPincode(raw string) string {
	return pincodeRe.FindString(raw)
}

// titleCase capitalizes each word, lower-casing the rest
func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
