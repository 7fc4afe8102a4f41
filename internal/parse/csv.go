// Package parse turns raw source payloads (CSV text, sitemap XML, RSS/Atom
// feeds, rendered HTML) into normalized records for the source adapter layer.
package parse

import "strings"

// CSV parses comma-separated text into one record per data line, keyed by the
// header row. Double-quote-enclosed commas are respected; a quote character
// simply toggles quoted state, so unbalanced quoting degrades gracefully
// instead of failing the file.
//
// Lines with fewer fields than the header keep the missing keys absent.
// Returns nil when the input has no header line.
func CSV(text string) []map[string]string {
	lines := splitLines(text)
	if len(lines) == 0 {
		return nil
	}

	headers := splitCSVLine(lines[0])
	if len(headers) == 0 {
		return nil
	}

	records := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitCSVLine(line)
		record := make(map[string]string, len(headers))
		for i, h := range headers {
			if i >= len(fields) {
				break
			}
			record[h] = fields[i]
		}
		records = append(records, record)
	}
	return records
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// splitCSVLine splits a single line on commas outside double quotes.
// Quotes are stripped from the resulting fields; doubled quotes inside a
// quoted field collapse to a single quote.
func splitCSVLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				current.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))
	return fields
}
