package subtitle

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// BOM signatures checked before any content heuristics.
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeToUTF8 detects the encoding of raw subtitle bytes and returns
// UTF-8 text. Detection order: BOM, then UTF-8 validity, then a
// Windows-1252 fallback for the legacy single-byte files subtitle
// sites still serve.
func DecodeToUTF8(raw []byte) (string, error) {
	switch {
	case bytes.HasPrefix(raw, bomUTF8):
		return string(raw[len(bomUTF8):]), nil
	case bytes.HasPrefix(raw, bomUTF16LE):
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), raw)
	case bytes.HasPrefix(raw, bomUTF16BE):
		return decodeWith(unicode.UTF16(unicode.BigEndian, unicode.UseBOM), raw)
	case utf8.Valid(raw):
		return string(raw), nil
	default:
		return decodeWith(charmap.Windows1252, raw)
	}
}

func decodeWith(enc encoding.Encoding, raw []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("failed to transcode subtitle content: %w", err)
	}
	return string(out), nil
}
