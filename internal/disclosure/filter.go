// Package disclosure reveals the encrypted fields of ledger query results that
// the caller holds the key for.
//
// Fields are edited in place on the raw JSON, so everything the filter does not
// touch reaches the client byte for byte as the ledger returned it.
package disclosure

import (
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/evidenceledger/ledgergateway/internal/metrics"
)

// Record is one processed record of a query result
type Record struct {
	// Raw is the record with the decrypted fields added
	Raw string
	// LocatorField and Locator are the name and value of the resource locator field
	LocatorField string
	Locator      string
	// Hashed lists the hash fields, left as they are
	Hashed []string
	// Decrypted lists the encrypted fields whose plaintext was added
	Decrypted []string
	// Skipped lists the encrypted fields that could not be revealed
	Skipped []string
}

// Result of Reveal
type Result struct {
	// Raw is the whole augmented document
	Raw []byte
	// Sequence is set when the query returned an array of records
	Sequence bool
	Records  []*Record
	// PassThrough is set when the input was returned unprocessed
	PassThrough bool
}

// HashValue returns the value of a hash field of the record
func (r *Record) HashValue(field string) string {
	return gjson.Get(r.Raw, escapePath(field)).String()
}

// SetRaw adds or replaces a top level field of the record with a raw JSON value
func (r *Record) SetRaw(field, value string) error {
	out, err := sjson.SetRaw(r.Raw, escapePath(field), value)
	if err != nil {
		return err
	}
	r.Raw = out
	return nil
}

// Encode reassembles the document from its records, picking up any change
// made to them after Reveal
func (r *Result) Encode() []byte {
	if r.PassThrough {
		return r.Raw
	}
	if !r.Sequence {
		return []byte(r.Records[0].Raw)
	}
	elems := make([]string, len(r.Records))
	for i, rec := range r.Records {
		elems[i] = rec.Raw
	}
	return []byte("[" + strings.Join(elems, ",") + "]")
}

type decrypter interface {
	Decrypt(ciphertext, key string) ([]byte, error)
}

type Filter struct {
	schema  *Schema
	cipher  decrypter
	metrics *metrics.Metrics
}

// NewFilter returns a filter classifying fields with schema. Nil arguments
// mean DefaultSchema and NewCipher.
func NewFilter(schema *Schema, cipher *Cipher, m *metrics.Metrics) *Filter {
	if schema == nil {
		schema = DefaultSchema()
	}
	if cipher == nil {
		cipher = NewCipher()
	}
	return &Filter{schema: schema, cipher: cipher, metrics: m}
}

// Reveal decrypts every encrypted field of raw that key opens and adds its
// plaintext next to it. A field that does not decrypt, or whose plaintext is
// not JSON, is skipped without affecting the others. Input that is not a JSON
// object or array comes back unchanged.
func (f *Filter) Reveal(raw []byte, key string) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("disclosure filter panicked, passing result through", "panic", r)
			res = passThrough(raw)
		}
	}()

	if !gjson.ValidBytes(raw) {
		slog.Debug("query result is not JSON, passing through")
		return passThrough(raw)
	}

	doc := gjson.ParseBytes(raw)
	switch {
	case doc.IsObject():
		rec := f.revealRecord(doc.Raw, key)
		return &Result{Raw: []byte(rec.Raw), Records: []*Record{rec}}

	case doc.IsArray():
		res := &Result{Sequence: true, Records: []*Record{}}
		doc.ForEach(func(_, value gjson.Result) bool {
			if value.IsObject() {
				res.Records = append(res.Records, f.revealRecord(value.Raw, key))
			} else {
				res.Records = append(res.Records, &Record{Raw: value.Raw})
			}
			return true
		})
		res.Raw = res.Encode()
		return res

	default:
		return passThrough(raw)
	}
}

func passThrough(raw []byte) *Result {
	return &Result{Raw: raw, PassThrough: true}
}

func (f *Filter) revealRecord(raw, key string) *Record {
	rec := &Record{Raw: raw}
	out := raw

	gjson.Parse(raw).ForEach(func(k, value gjson.Result) bool {
		name := k.String()

		switch f.schema.Classify(name) {
		case Encrypted:
			plaintext, ok := f.decryptField(name, value, key)
			if !ok {
				rec.Skipped = append(rec.Skipped, name)
				f.metrics.DisclosureField("skipped")
				return true
			}
			updated, err := sjson.SetRaw(out, escapePath(f.schema.DecryptedName(name)), plaintext)
			if err != nil {
				slog.Debug("cannot add decrypted field", "field", name, "error", err)
				rec.Skipped = append(rec.Skipped, name)
				f.metrics.DisclosureField("skipped")
				return true
			}
			out = updated
			rec.Decrypted = append(rec.Decrypted, name)
			f.metrics.DisclosureField("decrypted")

		case Hashed:
			rec.Hashed = append(rec.Hashed, name)
			f.metrics.DisclosureField("hashed")

		case Locator:
			if rec.LocatorField == "" {
				rec.LocatorField = name
				rec.Locator = value.String()
			}
		}
		return true
	})

	rec.Raw = out
	return rec
}

func (f *Filter) decryptField(name string, value gjson.Result, key string) (string, bool) {
	if value.Type != gjson.String {
		slog.Debug("encrypted field is not a string", "field", name)
		return "", false
	}

	plaintext, err := f.cipher.Decrypt(value.String(), key)
	if err != nil {
		slog.Debug("cannot decrypt field", "field", name, "error", err)
		return "", false
	}
	if !gjson.ValidBytes(plaintext) {
		slog.Debug("decrypted field is not JSON", "field", name)
		return "", false
	}
	return string(plaintext), true
}

// escapePath makes a field name usable as a single gjson/sjson path component
func escapePath(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', ':', '=', '<', '>', '%', '[', ']', '{', '}', '(', ')', ',', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
