// Package accepts negotiates response representations against the Accept
// family of request headers.
//
// Media types are matched with goautoneg and languages with the
// golang.org/x/text matcher. Encodings and charsets use plain q-value lists.
// Offers may be short names ("json", "html") or full media types; the offer
// that wins is returned exactly as the caller passed it.
package accepts

import (
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/munnerz/goautoneg"
	"golang.org/x/text/language"
)

// Negotiator answers Accept-* questions for one request.
type Negotiator struct {
	header http.Header
}

// New returns a Negotiator reading from r's headers.
func New(r *http.Request) *Negotiator {
	return &Negotiator{header: r.Header}
}

// Type returns the best of offers for the Accept header. With no Accept
// header the first offer wins. ok is false when nothing is acceptable.
func (n *Negotiator) Type(offers ...string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}
	accept := n.header.Get("Accept")
	if strings.TrimSpace(accept) == "" {
		return offers[0], true
	}

	normalized := make([]string, 0, len(offers))
	byType := make(map[string]string, len(offers))
	for _, o := range offers {
		mt := NormalizeType(o)
		if mt == "" {
			continue
		}
		if _, dup := byType[mt]; !dup {
			byType[mt] = o
			normalized = append(normalized, mt)
		}
	}
	if len(normalized) == 0 {
		return "", false
	}

	best := goautoneg.Negotiate(accept, normalized)
	if best == "" {
		return "", false
	}
	return byType[best], true
}

// Types returns the client's accepted media types, most preferred first.
func (n *Negotiator) Types() []string {
	accept := n.header.Get("Accept")
	if strings.TrimSpace(accept) == "" {
		return []string{"*/*"}
	}
	var out []string
	for _, a := range goautoneg.ParseAccept(accept) {
		if a.Q <= 0 {
			continue
		}
		out = append(out, a.Type+"/"+a.SubType)
	}
	return out
}

// Language returns the best of offers for Accept-Language.
func (n *Negotiator) Language(offers ...string) (string, bool) {
	if len(offers) == 0 {
		return "", false
	}
	header := n.header.Get("Accept-Language")
	if strings.TrimSpace(header) == "" {
		return offers[0], true
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return "", false
	}

	supported := make([]language.Tag, 0, len(offers))
	index := make([]int, 0, len(offers))
	for i, o := range offers {
		tag, err := language.Parse(o)
		if err != nil {
			continue
		}
		supported = append(supported, tag)
		index = append(index, i)
	}
	if len(supported) == 0 {
		return "", false
	}

	_, i, conf := language.NewMatcher(supported).Match(tags...)
	if conf == language.No {
		return "", false
	}
	return offers[index[i]], true
}

// Languages returns the client's accepted languages, most preferred first.
func (n *Negotiator) Languages() []string {
	tags, _, err := language.ParseAcceptLanguage(n.header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return []string{"*"}
	}
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Encoding returns the best of offers for Accept-Encoding. identity is
// acceptable unless the client refuses it explicitly.
func (n *Negotiator) Encoding(offers ...string) (string, bool) {
	prefs := parseQList(n.header.Get("Accept-Encoding"))
	if !refused(prefs, "identity") {
		prefs = append(prefs, qValue{value: "identity", q: 0.0001, order: len(prefs)})
	}
	return pick(prefs, offers)
}

// Encodings returns the client's accepted encodings, most preferred first.
func (n *Negotiator) Encodings() []string {
	return values(parseQList(n.header.Get("Accept-Encoding")), "identity")
}

// Charset returns the best of offers for Accept-Charset.
func (n *Negotiator) Charset(offers ...string) (string, bool) {
	header := n.header.Get("Accept-Charset")
	if strings.TrimSpace(header) == "" {
		if len(offers) == 0 {
			return "", false
		}
		return offers[0], true
	}
	return pick(parseQList(header), offers)
}

// Charsets returns the client's accepted charsets, most preferred first.
func (n *Negotiator) Charsets() []string {
	return values(parseQList(n.header.Get("Accept-Charset")), "*")
}

// shortTypes maps the names commonly used in place of a media type.
var shortTypes = map[string]string{
	"text":       "text/plain",
	"html":       "text/html",
	"json":       "application/json",
	"xml":        "application/xml",
	"bin":        "application/octet-stream",
	"urlencoded": "application/x-www-form-urlencoded",
	"form":       "application/x-www-form-urlencoded",
	"multipart":  "multipart/*",
}

// NormalizeType expands a short name ("json", ".png") to a bare media type.
// It returns "" when offer is not recognized.
func NormalizeType(offer string) string {
	offer = strings.TrimSpace(offer)
	if offer == "" {
		return ""
	}
	if mt, ok := shortTypes[strings.ToLower(offer)]; ok {
		return mt
	}
	if !strings.Contains(offer, "/") {
		if !strings.HasPrefix(offer, ".") {
			offer = "." + offer
		}
		offer = mime.TypeByExtension(offer)
		if offer == "" {
			return ""
		}
	}
	mt, _, err := mime.ParseMediaType(offer)
	if err != nil {
		return ""
	}
	return mt
}

type qValue struct {
	value string
	q     float64
	order int
}

// parseQList parses "gzip;q=0.8, br" style headers, best first.
func parseQList(header string) []qValue {
	var out []qValue
	for i, part := range strings.Split(header, ",") {
		fields := strings.Split(part, ";")
		v := strings.ToLower(strings.TrimSpace(fields[0]))
		if v == "" {
			continue
		}
		q := 1.0
		for _, p := range fields[1:] {
			k, raw, ok := strings.Cut(strings.TrimSpace(p), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
				q = f
			}
		}
		out = append(out, qValue{value: v, q: q, order: i})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].q > out[j].q
	})
	return out
}

func refused(prefs []qValue, v string) bool {
	for _, p := range prefs {
		if p.value == v || p.value == "*" {
			return p.q <= 0
		}
	}
	return false
}

// pick returns the offer with the best q. Ties go to the earlier offer.
func pick(prefs []qValue, offers []string) (string, bool) {
	best, bestQ := -1, 0.0
	for i, o := range offers {
		q := qualityOf(prefs, strings.ToLower(o))
		if q > bestQ {
			best, bestQ = i, q
		}
	}
	if best < 0 {
		return "", false
	}
	return offers[best], true
}

func qualityOf(prefs []qValue, offer string) float64 {
	wildcard := -1.0
	for _, p := range prefs {
		switch p.value {
		case offer:
			return p.q
		case "*":
			if wildcard < 0 {
				wildcard = p.q
			}
		}
	}
	if wildcard < 0 {
		return 0
	}
	return wildcard
}

func values(prefs []qValue, fallback string) []string {
	out := make([]string, 0, len(prefs))
	for _, p := range prefs {
		if p.q > 0 {
			out = append(out, p.value)
		}
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}
