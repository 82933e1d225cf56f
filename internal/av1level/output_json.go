package av1level

import (
	"bytes"
	"encoding/json"
)

type jsonKV struct {
	Key string
	Val string
	Raw bool
}

// RenderJSON renders the report in the same field order as RenderText.
func RenderJSON(r Report) string {
	tracks := make([]string, 0, 4)
	for _, section := range Sections(r) {
		fields := []jsonKV{{Key: "@type", Val: section.Title}}
		for _, f := range section.Fields {
			if f.JSON != "" {
				fields = append(fields, jsonKV{Key: f.Key, Val: f.JSON, Raw: true})
			} else {
				fields = append(fields, jsonKV{Key: f.Key, Val: f.Value})
			}
		}
		tracks = append(tracks, renderJSONObject(fields, false))
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	writeJSONField(&buf, "creatingLibrary", renderJSONObject(jsonCreatingLibraryFields(), false), true)
	buf.WriteString(",\n")
	media := []jsonKV{
		{Key: "@ref", Val: r.Path},
		{Key: "track", Val: renderJSONArray(tracks), Raw: true},
	}
	writeJSONField(&buf, "media", renderJSONObject(media, true), true)
	buf.WriteString("\n}\n")
	return buf.String()
}

func jsonCreatingLibraryFields() []jsonKV {
	return []jsonKV{
		{Key: "name", Val: AppName},
		{Key: "version", Val: FormatVersion(AppVersion)},
		{Key: "url", Val: AppURL},
	}
}

func renderJSONArray(items []string) string {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, item := range items {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(item)
	}
	buf.WriteString("\n]")
	return buf.String()
}

func renderJSONObject(fields []jsonKV, multiline bool) string {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, field := range fields {
		if i > 0 {
			if multiline {
				buf.WriteString(",\n")
			} else {
				buf.WriteString(",")
			}
		}
		writeJSONField(&buf, field.Key, field.Val, field.Raw)
	}
	buf.WriteString("}")
	return buf.String()
}

func writeJSONField(buf *bytes.Buffer, key, value string, raw bool) {
	buf.WriteString("\"")
	buf.WriteString(key)
	buf.WriteString("\":")
	if raw {
		buf.WriteString(value)
		return
	}
	buf.WriteString(renderJSONString(value))
}

func renderJSONString(value string) string {
	data, _ := json.Marshal(value)
	return string(data)
}
