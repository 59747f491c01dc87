package message

import "unicode/utf16"

// Entity offsets and lengths on the wire count UTF-16 code units.

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

func toUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

func fromUTF16(u []uint16) string {
	return string(utf16.Decode(u))
}
