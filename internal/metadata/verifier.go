package metadata

import (
	"crypto/hmac"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/evidenceledger/ledgergateway/internal/disclosure"
)

// VerifiedSuffix names the field that tells whether a hash field still matches
// its resource
const VerifiedSuffix = "_VERIFIED"

// Verifier checks revealed records against the resources they point to and
// writes the response
type Verifier struct {
	extractor *Extractor
}

func NewVerifier(e *Extractor) *Verifier {
	return &Verifier{extractor: e}
}

// Present refetches the resource of every record that has a locator and hash
// fields, adds <hashField>_VERIFIED to the record, and sends the document.
// A resource that cannot be fetched verifies as false.
func (v *Verifier) Present(c *fiber.Ctx, res *disclosure.Result, key string) error {
	if res.PassThrough {
		return c.Send(res.Raw)
	}

	for _, rec := range res.Records {
		if rec.Locator == "" || len(rec.Hashed) == 0 {
			continue
		}

		fingerprint := ""
		md, _, err := v.extractor.describe(c.UserContext(), rec.Locator)
		if err != nil {
			slog.Debug("cannot fetch resource for verification", "locator", rec.Locator, "error", err)
			v.extractor.metrics.Extraction("verify_failed")
		} else if fingerprint, err = Fingerprint(key, md.SHA256); err != nil {
			fingerprint = ""
		}

		for _, field := range rec.Hashed {
			verified := fingerprint != "" && hmac.Equal([]byte(fingerprint), []byte(rec.HashValue(field)))
			value := "false"
			if verified {
				value = "true"
			}
			if err := rec.SetRaw(field+VerifiedSuffix, value); err != nil {
				slog.Debug("cannot annotate record", "field", field, "error", err)
			}
		}
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(res.Encode())
}
