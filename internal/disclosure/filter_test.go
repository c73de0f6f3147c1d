package disclosure

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func encrypt(t *testing.T, plaintext, key string) string {
	t.Helper()
	ct, err := NewCipher().Encrypt([]byte(plaintext), key)
	require.NoError(t, err)
	return ct
}

func TestClassify(t *testing.T) {
	s := DefaultSchema()

	tests := []struct {
		name string
		want Class
	}{
		{"payload_ENCRYPT", Encrypted},
		{"ENCRYPT", Encrypted},
		{"payloadENCRYPT", Encrypted},
		{"payload.ENCRYPT", Encrypted},
		{"owner-ENCRYPT-v2", Encrypted},
		{"ENCRYPTION_KEY", Plain},
		{"UNENCRYPTED", Plain},
		{"encrypt", Plain},
		{"payload_ENCRYPT_DECRYPT", Plain},
		{"image_HASH", Hashed},
		{"sha256HASH", Hashed},
		{"HASHTAG", Plain},
		{"imageURL", Locator},
		{"image_URL", Locator},
		{"CURL", Plain},
		{"status", Plain},
		{"", Plain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Classify(tt.name))
		})
	}
}

func TestClassifyFirstRuleWins(t *testing.T) {
	assert.Equal(t, Encrypted, DefaultSchema().Classify("HASH_ENCRYPT"))

	custom := &Schema{Rules: []Rule{{Marker: "SECRET", Class: Encrypted}}, DecryptSuffix: "_PLAIN"}
	assert.Equal(t, Encrypted, custom.Classify("api_SECRET"))
	assert.Equal(t, Plain, custom.Classify("api_ENCRYPT"))
	assert.Equal(t, "api_SECRET_PLAIN", custom.DecryptedName("api_SECRET"))
}

func TestCipher(t *testing.T) {
	c := NewCipher()

	ct, err := c.Encrypt([]byte(`{"a":1}`), "k1")
	require.NoError(t, err)

	pt, err := c.Decrypt(ct, "k1")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(pt))

	// fresh salt and nonce every time
	ct2, err := c.Encrypt([]byte(`{"a":1}`), "k1")
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2)

	_, err = c.Decrypt(ct, "k2")
	assert.ErrorIs(t, err, ErrDecryptFailed)

	_, err = c.Decrypt(ct, "")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = c.Encrypt([]byte("x"), "")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = c.Decrypt("not base64!", "k1")
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = c.Decrypt("c2hvcnQ=", "k1")
	assert.ErrorIs(t, err, ErrCiphertext)
}

func TestRevealSingleRecord(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	ct := encrypt(t, `{"owner":"alice","amount":10}`, "correctKey")

	raw := fmt.Sprintf(`{"status":"active",  "nested": {"x": [1, 2]}, "payload_ENCRYPT":%q, "image_HASH":"abc123", "imageURL":"http://host/img.png"}`, ct)

	res := f.Reveal([]byte(raw), "correctKey")
	require.False(t, res.PassThrough)
	require.False(t, res.Sequence)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, []string{"payload_ENCRYPT"}, rec.Decrypted)
	assert.Empty(t, rec.Skipped)
	assert.Equal(t, []string{"image_HASH"}, rec.Hashed)
	assert.Equal(t, "imageURL", rec.LocatorField)
	assert.Equal(t, "http://host/img.png", rec.Locator)
	assert.Equal(t, "abc123", rec.HashValue("image_HASH"))

	out := gjson.ParseBytes(res.Raw)
	assert.Equal(t, "active", out.Get("status").String())
	assert.Equal(t, ct, out.Get("payload_ENCRYPT").String())
	assert.Equal(t, "alice", out.Get("payload_ENCRYPT_DECRYPT.owner").String())
	assert.Equal(t, int64(10), out.Get("payload_ENCRYPT_DECRYPT.amount").Int())

	// untouched fields keep their exact bytes
	assert.True(t, strings.HasPrefix(string(res.Raw), `{"status":"active",  "nested": {"x": [1, 2]}, `))
}

func TestRevealPlainFieldsUnchanged(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := []byte(`{"b": 2, "a" : "x", "list":[{"k":null}], "ENCRYPTION_KEY":"not a ciphertext"}`)

	res := f.Reveal(raw, "anyKey")
	assert.Equal(t, string(raw), string(res.Raw))
	assert.Empty(t, res.Records[0].Decrypted)
	assert.Empty(t, res.Records[0].Skipped)
}

func TestRevealWrongKey(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := fmt.Sprintf(`{"status":"active","payload_ENCRYPT":%q,"other_ENCRYPT":%q}`,
		encrypt(t, `{"v":1}`, "correctKey"), encrypt(t, `{"v":2}`, "wrongKey"))

	var res *Result
	require.NotPanics(t, func() { res = f.Reveal([]byte(raw), "wrongKey") })

	rec := res.Records[0]
	assert.Equal(t, []string{"payload_ENCRYPT"}, rec.Skipped)
	assert.Equal(t, []string{"other_ENCRYPT"}, rec.Decrypted)

	out := gjson.ParseBytes(res.Raw)
	assert.False(t, out.Get("payload_ENCRYPT_DECRYPT").Exists())
	assert.Equal(t, int64(2), out.Get("other_ENCRYPT_DECRYPT.v").Int())
	assert.True(t, out.Get("status").Exists())
	assert.True(t, out.Get("payload_ENCRYPT").Exists())
}

func TestRevealSkipsUnusablePlaintext(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := fmt.Sprintf(`{"a_ENCRYPT":%q,"b_ENCRYPT":42,"c_ENCRYPT":"garbage"}`, encrypt(t, "not json", "k"))

	res := f.Reveal([]byte(raw), "k")
	assert.ElementsMatch(t, []string{"a_ENCRYPT", "b_ENCRYPT", "c_ENCRYPT"}, res.Records[0].Skipped)
	assert.Equal(t, raw, string(res.Raw))
}

func TestRevealSequence(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)

	const n = 5
	const corrupt = 2
	var elems []string
	for i := 0; i < n; i++ {
		ct := encrypt(t, fmt.Sprintf(`{"i":%d}`, i), "k")
		if i == corrupt {
			ct = ct[:len(ct)-8] + "AAAAAAA="
		}
		elems = append(elems, fmt.Sprintf(`{"id":%d,"data_ENCRYPT":%q}`, i, ct))
	}
	raw := "[" + strings.Join(elems, ",") + "]"

	res := f.Reveal([]byte(raw), "k")
	require.True(t, res.Sequence)
	require.Len(t, res.Records, n)

	out := gjson.ParseBytes(res.Raw).Array()
	require.Len(t, out, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, int64(i), out[i].Get("id").Int())
		if i == corrupt {
			assert.Equal(t, []string{"data_ENCRYPT"}, res.Records[i].Skipped)
			assert.False(t, out[i].Get("data_ENCRYPT_DECRYPT").Exists())
			continue
		}
		assert.Equal(t, []string{"data_ENCRYPT"}, res.Records[i].Decrypted)
		assert.Equal(t, int64(i), out[i].Get("data_ENCRYPT_DECRYPT.i").Int())
	}
}

func TestRevealSequenceWithScalars(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := `[1,"two",{"x_ENCRYPT":` + fmt.Sprintf("%q", encrypt(t, `true`, "k")) + `},null]`

	res := f.Reveal([]byte(raw), "k")
	require.Len(t, res.Records, 4)

	out := gjson.ParseBytes(res.Raw).Array()
	assert.Equal(t, int64(1), out[0].Int())
	assert.Equal(t, "two", out[1].String())
	assert.True(t, out[2].Get("x_ENCRYPT_DECRYPT").Bool())
	assert.Equal(t, gjson.Null, out[3].Type)
}

func TestRevealPassThrough(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)

	for _, raw := range []string{"", "not json", `{"a":`, `"just a string"`, `42`} {
		res := f.Reveal([]byte(raw), "k")
		assert.True(t, res.PassThrough, raw)
		assert.Equal(t, raw, string(res.Raw))
		assert.Empty(t, res.Records)
	}
}

type panickingCipher struct{}

func (panickingCipher) Decrypt(string, string) ([]byte, error) { panic("boom") }

func TestRevealRecoversFromPanic(t *testing.T) {
	f := &Filter{schema: DefaultSchema(), cipher: panickingCipher{}}
	raw := []byte(`{"a_ENCRYPT":"x"}`)

	var res *Result
	require.NotPanics(t, func() { res = f.Reveal(raw, "k") })
	assert.True(t, res.PassThrough)
	assert.Equal(t, raw, res.Raw)
}

func TestRevealDoesNotReprocessOutput(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := fmt.Sprintf(`{"p_ENCRYPT":%q}`, encrypt(t, `{"v":1}`, "k"))

	first := f.Reveal([]byte(raw), "k")
	second := f.Reveal(first.Raw, "k")

	assert.Equal(t, []string{"p_ENCRYPT"}, second.Records[0].Decrypted)
	assert.JSONEq(t, string(first.Raw), string(second.Raw))
}

func TestRevealFieldNamesWithPathCharacters(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := fmt.Sprintf(`{"doc.v1*_ENCRYPT":%q}`, encrypt(t, `{"ok":true}`, "k"))

	res := f.Reveal([]byte(raw), "k")
	require.Equal(t, []string{"doc.v1*_ENCRYPT"}, res.Records[0].Decrypted)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(res.Raw, &out))
	assert.JSONEq(t, `{"ok":true}`, string(out["doc.v1*_ENCRYPT_DECRYPT"]))
}

func TestRevealEndToEndExample(t *testing.T) {
	f := NewFilter(nil, NewCipher(), nil)
	raw := fmt.Sprintf(`{"status":"active","payload_ENCRYPT":%q}`, encrypt(t, `{"owner":"alice","note":"hello"}`, "correctKey"))

	res := f.Reveal([]byte(raw), "correctKey")

	var out map[string]any
	require.NoError(t, json.Unmarshal(res.Raw, &out))
	assert.Equal(t, "active", out["status"])
	assert.Contains(t, out, "payload_ENCRYPT")
	assert.Equal(t, map[string]any{"owner": "alice", "note": "hello"}, out["payload_ENCRYPT_DECRYPT"])
}
