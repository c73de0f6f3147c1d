package disclosure

import (
	"strings"
	"unicode"
)

// Class is the disclosure treatment of a field
type Class int

const (
	Plain Class = iota
	Encrypted
	Hashed
	Locator
)

func (c Class) String() string {
	switch c {
	case Encrypted:
		return "encrypted"
	case Hashed:
		return "hashed"
	case Locator:
		return "locator"
	default:
		return "plain"
	}
}

// Rule classifies a field whose name carries Marker as one of its tokens
type Rule struct {
	Marker string
	Class  Class
}

// Schema decides how each field of a record is treated.
//
// A field name is split into tokens at every non alphanumeric character and
// at every lower to upper case boundary, so "payload_ENCRYPT", "payload.ENCRYPT"
// and "payloadENCRYPT" all carry the token ENCRYPT while "ENCRYPTION_KEY" does
// not. Rules are tried in order and the first one whose marker equals a token
// wins. Names ending in DecryptSuffix are output of the filter and always Plain.
type Schema struct {
	Rules         []Rule
	DecryptSuffix string
}

// DefaultSchema recognizes the ENCRYPT, HASH and URL markers
func DefaultSchema() *Schema {
	return &Schema{
		Rules: []Rule{
			{Marker: "ENCRYPT", Class: Encrypted},
			{Marker: "HASH", Class: Hashed},
			{Marker: "URL", Class: Locator},
		},
		DecryptSuffix: "_DECRYPT",
	}
}

func (s *Schema) Classify(name string) Class {
	if s.DecryptSuffix != "" && strings.HasSuffix(name, s.DecryptSuffix) {
		return Plain
	}

	tokens := tokenize(name)
	for _, r := range s.Rules {
		for _, t := range tokens {
			if t == r.Marker {
				return r.Class
			}
		}
	}
	return Plain
}

// DecryptedName is the name of the field that receives the plaintext of name
func (s *Schema) DecryptedName(name string) string {
	return name + s.DecryptSuffix
}

func tokenize(name string) []string {
	var tokens []string
	var cur []rune
	var prev rune

	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			prev = 0
			continue
		}
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			flush()
		}
		cur = append(cur, r)
		prev = r
	}
	flush()

	return tokens
}
