package protocol

import unicodenorm "golang.org/x/text/unicode/norm"

// callbackKey addresses a callback by module and message name.
type callbackKey struct {
	module      string
	messageName string
}

// keyFor normalizes names to NFC so visually identical names from different
// producers address the same callback.
func keyFor(module, messageName string) callbackKey {
	return callbackKey{
		module:      norm(module),
		messageName: norm(messageName),
	}
}

func norm(s string) string { return unicodenorm.NFC.String(s) }
