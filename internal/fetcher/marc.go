package fetcher

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// FindSubfield returns the first value of subfield code in datafield tag of
// a MarcXchange document, or "" when the field is absent.
func FindSubfield(content []byte, tag, code string) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	inField := false
	seenElement := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if !seenElement {
				return "", fmt.Errorf("no marc record in content")
			}
			return "", nil
		}
		if err != nil {
			return "", err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			seenElement = true
			switch el.Name.Local {
			case "datafield":
				inField = attr(el, "tag") == tag
			case "subfield":
				if inField && attr(el, "code") == code {
					var value string
					if err := dec.DecodeElement(&value, &el); err != nil {
						return "", err
					}
					if value = strings.TrimSpace(value); value != "" {
						return value, nil
					}
				}
			}
		case xml.EndElement:
			if el.Name.Local == "datafield" {
				inField = false
			}
		}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
