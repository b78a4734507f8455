package extractor

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decodeText attempts a fixed priority of character encodings and never
// fails: when nothing matches, invalid sequences are dropped.
func decodeText(content []byte) string {
	if utf8.Valid(content) {
		return strings.TrimPrefix(string(content), "\uFEFF")
	}

	decoders := []*encoding.Decoder{
		unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder(),
		unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder(),
		charmap.ISO8859_1.NewDecoder(),
		charmap.Windows1252.NewDecoder(),
	}
	for _, dec := range decoders {
		decoded, err := dec.Bytes(content)
		if err == nil && utf8.Valid(decoded) {
			return string(bytes.TrimPrefix(decoded, []byte("\uFEFF")))
		}
	}

	return strings.ToValidUTF8(string(content), "")
}
