package memegen

import "fmt"

// ImageURL builds the image link for a template with the given caption halves.
// Both halves go through Encode, so empty text becomes the blank marker.
func ImageURL(base, templateID, top, bottom string) string {
	return fmt.Sprintf("%s/images/%s/%s/%s.png", base, templateID, Encode(top), Encode(bottom))
}

// BlankImageURL builds the canonical "show the blank template" link with both
// halves set to the literal blank marker, bypassing the text encoding.
func BlankImageURL(base, templateID string) string {
	return fmt.Sprintf("%s/images/%s/%s/%s.png", base, templateID, Blank, Blank)
}
