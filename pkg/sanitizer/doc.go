// Package sanitizer normalizes user supplied reservation and sign-in input
// before validation and storage.
//
// All functions are idempotent and never fail: input that cannot be
// normalized comes back empty so the validator rejects it.
//
// Normalization includes:
//   - Phone numbers: E.164 (+[country][number]), local numbers resolved against the business region
//   - Names: trimmed, inner whitespace collapsed to single spaces
package sanitizer
