package av1level

import (
	"bytes"
	"fmt"
	"strings"
)

func RenderText(r Report) string {
	var buf bytes.Buffer
	for i, section := range Sections(r) {
		if i > 0 {
			buf.WriteString("\n")
		}
		writeSection(&buf, section)
	}
	buf.WriteString("\n")
	buf.WriteString(reportByLine())
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "Level: %s -> %s\n", r.OldLevel, r.NewLevel)
	return buf.String()
}

func reportByLine() string {
	return fmt.Sprintf("ReportBy : %s - %s", AppName, FormatVersion(AppVersion))
}

func writeSection(buf *bytes.Buffer, section Section) {
	buf.WriteString(section.Title)
	buf.WriteString("\n")
	for _, field := range section.Fields {
		buf.WriteString(padRight(field.Name, 41))
		buf.WriteString(": ")
		buf.WriteString(field.Value)
		buf.WriteString("\n")
	}
}

func padRight(value string, width int) string {
	if len(value) >= width {
		return value
	}
	return value + strings.Repeat(" ", width-len(value))
}
