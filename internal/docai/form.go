package docai

import "fmt"

// ExtractFormKV reads the key-value pairs detected by the form parser.
// Key and value anchors resolve independently against the form document's
// full text; a field is emitted only when both sides resolve to non-empty
// strings, since a key with no value carries no retrievable information.
func ExtractFormKV(doc *FormDocument) []KVItem {
	if doc == nil {
		return nil
	}

	var items []KVItem
	for _, page := range doc.Pages {
		for _, field := range page.FormFields {
			key := resolveLayoutText(field.FieldName, doc.Text)
			value := resolveLayoutText(field.FieldValue, doc.Text)
			if key == "" || value == "" {
				continue
			}
			items = append(items, KVItem{
				Text: fmt.Sprintf("%s: %s", key, value),
				Page: page.PageNumber,
			})
		}
	}
	return items
}
