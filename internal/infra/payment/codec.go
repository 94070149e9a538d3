package payment

import (
	"encoding/xml"
	"io"
	"net/url"
	"sort"
	"strings"
)

// Wire codecs for the provider protocols. The XML shape is the flat
// single-level document WeChat speaks (<xml><key>value</key>...</xml>); no
// nesting, no attributes. Alipay transport and signing must agree on byte
// order, so the canonical query string sorts keys itself.

// EncodeXML renders params as a flat <xml> document with CDATA-free values.
// Key order is sorted for determinism; WeChat ignores element order.
func EncodeXML(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<xml>")
	for _, k := range keys {
		b.WriteString("<" + k + ">")
		_ = xml.EscapeText(&b, []byte(params[k]))
		b.WriteString("</" + k + ">")
	}
	b.WriteString("</xml>")
	return b.String()
}

// DecodeXML parses a flat <xml> document into a map. Nested elements are not
// supported; only leaf character data directly under the root is kept.
func DecodeXML(doc string) (map[string]string, error) {
	dec := xml.NewDecoder(strings.NewReader(doc))
	out := make(map[string]string)

	var current string
	var depth int
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
			}
		case xml.EndElement:
			depth--
			if depth < 2 {
				current = ""
			}
		case xml.CharData:
			if depth == 2 && current != "" {
				out[current] += string(t)
			}
		}
	}
}

// CanonicalQuery builds the sorted, URL-encoded key=value query string used
// on the Alipay gateway URL.
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(pairs, "&")
}
