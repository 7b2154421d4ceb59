package gmail

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Body is the decoded text of a message.
type Body struct {
	Plain string
	HTML  string
}

// ParseBody walks the MIME tree in pre-order and keeps the first text/plain
// and the first text/html part. When no plain part exists the HTML part with
// its tags removed is used instead.
func ParseBody(payload *gmailapi.MessagePart) Body {
	var b Body
	var walk func(p *gmailapi.MessagePart)
	walk = func(p *gmailapi.MessagePart) {
		if p == nil {
			return
		}
		if p.Body != nil && p.Body.Data != "" {
			if text, err := decodeData(p.Body.Data); err == nil {
				switch mediaType(p.MimeType) {
				case "text/plain":
					if b.Plain == "" {
						b.Plain = text
					}
				case "text/html":
					if b.HTML == "" {
						b.HTML = text
					}
				}
			}
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(payload)

	if b.Plain == "" && b.HTML != "" {
		b.Plain = StripTags(b.HTML)
	}
	return b
}

// StripTags returns the text content of an HTML fragment.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(z.Text())
		}
	}
}

// FlattenText collapses every run of whitespace to one space and trims the
// ends.
func FlattenText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// decodeData accepts URL-safe and standard base64, padded or not.
func decodeData(data string) (string, error) {
	trimmed := strings.TrimRight(data, "=")
	if out, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return string(out), nil
	}
	out, err := base64.RawStdEncoding.DecodeString(trimmed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func mediaType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
