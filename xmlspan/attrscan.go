package xmlspan

// scanAttrOffsets scans the raw bytes of a start tag and returns the absolute
// byte offset of each attribute name, keyed by the name exactly as written
// (prefix included). The tokenizer reports attribute names and values but not
// their positions, so they are recovered from the source text.
func scanAttrOffsets(raw []byte, base int64) map[string]int64 {
	result := make(map[string]int64)

	pos := 0

	// Skip '<' and the tag name.
	if pos < len(raw) && raw[pos] == '<' {
		pos++
	}
	for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
		pos++
	}

	for pos < len(raw) {
		// Skip whitespace before the attribute name.
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) || raw[pos] == '>' || raw[pos] == '/' {
			break
		}

		nameStart := pos
		for pos < len(raw) && raw[pos] != '=' && !isAttrSpace(raw[pos]) && raw[pos] != '>' && raw[pos] != '/' {
			pos++
		}
		result[string(raw[nameStart:pos])] = base + int64(nameStart)

		// Skip any whitespace before '='.
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) || raw[pos] != '=' {
			// Attribute without a value.
			continue
		}
		pos++ // skip '='

		// Skip any whitespace after '='.
		for pos < len(raw) && isAttrSpace(raw[pos]) {
			pos++
		}
		if pos >= len(raw) {
			break
		}

		if raw[pos] == '"' || raw[pos] == '\'' {
			quote := raw[pos]
			pos++
			for pos < len(raw) && raw[pos] != quote {
				pos++
			}
			if pos < len(raw) {
				pos++ // skip closing quote
			}
		} else {
			// Unquoted value.
			for pos < len(raw) && !isAttrSpace(raw[pos]) && raw[pos] != '>' {
				pos++
			}
		}
	}

	return result
}

func isAttrSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
