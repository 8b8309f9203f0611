package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain returns content as one section. A UTF-8 byte order mark is dropped and
// invalid sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]Section, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return single(string(content)), nil
}
