package alerting

// regionGroups maps a region identifier to the city areas it covers.
// Identifiers never collide with city names so an alert location is
// either one or the other.
var regionGroups = map[string][]string{
	"אזור ירושלים": {
		"ירושלים", "בית שמש", "מבשרת ציון", "מעלה אדומים", "ביתר עילית", "גבעת זאב", "אבו גוש",
	},
	"אזור המרכז": {
		"תל אביב", "רמת גן", "גבעתיים", "בני ברק", "פתח תקווה", "חולון", "בת ים", "ראשון לציון",
		"רחובות", "נס ציונה", "לוד", "רמלה", "מודיעין", "אלעד", "ראש העין", "יהוד",
	},
	"גוש דן": {
		"תל אביב", "רמת גן", "גבעתיים", "בני ברק", "חולון", "בת ים",
	},
	"אזור השרון": {
		"נתניה", "הרצליה", "רעננה", "כפר סבא", "הוד השרון", "רמת השרון", "כפר יונה",
	},
	"אזור הצפון": {
		"חיפה", "קריות", "עכו", "נהריה", "כרמיאל", "צפת", "טבריה", "עפולה", "נצרת", "חדרה", "זכרון יעקב",
	},
	"אזור הדרום": {
		"באר שבע", "אשדוד", "אשקלון", "קרית גת", "דימונה", "נתיבות", "אופקים", "שדרות", "אילת",
	},
}

// normalizedRegions is regionGroups with keys and cities folded by NormalizeText
var normalizedRegions = func() map[string][]string {
	out := make(map[string][]string, len(regionGroups))
	for region, cities := range regionGroups {
		folded := make([]string, 0, len(cities))
		for _, c := range cities {
			folded = append(folded, NormalizeText(c))
		}
		out[NormalizeText(region)] = folded
	}
	return out
}()

// RegionCities returns the cities of a normalized region identifier
func RegionCities(region string) ([]string, bool) {
	cities, ok := normalizedRegions[region]
	return cities, ok
}

// IsRegion reports whether location names a region rather than a city
func IsRegion(location string) bool {
	_, ok := normalizedRegions[NormalizeText(location)]
	return ok
}

// Regions lists region identifiers as configured
func Regions() []string {
	out := make([]string, 0, len(regionGroups))
	for r := range regionGroups {
		out = append(out, r)
	}
	return out
}
