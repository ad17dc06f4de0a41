package telegram

import (
	"regexp"
	"strings"
)

// captionLimit is the longest photo caption Telegram accepts, in characters.
const captionLimit = 1024

var reBold = regexp.MustCompile(`\*\*(.+?)\*\*`)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ToHTML escapes text for Telegram's HTML parse mode and renders **bold**.
// User-entered values pass through the escaper, so they cannot inject tags.
func ToHTML(text string) string {
	return reBold.ReplaceAllString(htmlEscaper.Replace(text), "<b>$1</b>")
}

// StripMarkup returns text without **bold** markers.
func StripMarkup(text string) string {
	return reBold.ReplaceAllString(text, "$1")
}

// fitsCaption reports whether text can be sent as a photo caption.
func fitsCaption(text string) bool {
	return len([]rune(text)) <= captionLimit
}
