// Package sanitizer normalizes booking input before it is validated and
// queued.
//
// All functions are idempotent. Unparseable input is returned trimmed rather
// than dropped so that validation can reject it with a meaningful message.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number])
//   - Emails: trimmed and lowercased
//   - Names and free text: whitespace collapsed, trimmed
//   - Currency codes: uppercased ISO 4217
package sanitizer
