// Package picker asks a person which keys to offer when routing is ambiguous.
//
// The router calls Pick with the candidate identities and a timeout. A
// Picker returns the chosen subset; on timeout or empty input it returns the
// first candidate. First is the non-interactive default. Terminal prompts on
// a TTY with a countdown.
package picker
