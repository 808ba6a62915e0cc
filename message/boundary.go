package message

import (
	cryptorand "crypto/rand"
	"encoding/base64"
)

// GenerateBoundary returns a multipart boundary token, unique enough for one
// message write.
func GenerateBoundary() string {
	buf := make([]byte, 18)
	cryptorand.Read(buf)
	return "Multipart_" + base64.RawURLEncoding.EncodeToString(buf)
}
