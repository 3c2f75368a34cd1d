package directory

import (
	"errors"
	"strings"
)

// ErrInvalidAlphabet is returned when an alphabet has fewer than 2 distinct
// characters and cannot encode anything.
var ErrInvalidAlphabet = errors.New("directory: room key alphabet needs at least 2 distinct characters")

// encodeRoomKey renders pk as an opaque string of at least minLength
// characters drawn from alphabet, grounded on original_source's
// make_room_key (which wraps the Sqids library). No Sqids-equivalent
// library is available in the retrieval pack, so this is a plain
// big-endian base-N digit encoding over the configured alphabet,
// left-padded with the alphabet's first character to minLength.
func encodeRoomKey(pk int, alphabet string, minLength int) (string, error) {
	distinct := make(map[byte]struct{}, len(alphabet))
	for i := 0; i < len(alphabet); i++ {
		distinct[alphabet[i]] = struct{}{}
	}
	if len(distinct) < 2 {
		return "", ErrInvalidAlphabet
	}
	base := len(alphabet)

	var digits []byte
	n := pk
	if n == 0 {
		digits = append(digits, alphabet[0])
	}
	for n > 0 {
		digits = append(digits, alphabet[n%base])
		n /= base
	}
	reverse(digits)

	if len(digits) < minLength {
		pad := strings.Repeat(string(alphabet[0]), minLength-len(digits))
		return pad + string(digits), nil
	}
	return string(digits), nil
}

// decodeRoomKey is the inverse of encodeRoomKey. The core never requires
// it (per spec §4.5), but it is provided for completeness and testing the
// round-trip.
func decodeRoomKey(key, alphabet string) (int, error) {
	base := len(alphabet)
	index := make(map[byte]int, base)
	for i := 0; i < base; i++ {
		index[alphabet[i]] = i
	}

	n := 0
	for i := 0; i < len(key); i++ {
		digit, ok := index[key[i]]
		if !ok {
			return 0, errors.New("directory: room key contains a character outside the configured alphabet")
		}
		n = n*base + digit
	}
	return n, nil
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
