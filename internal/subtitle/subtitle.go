// Package subtitle serializes timed text segments to SubRip (.srt)
// files and parses them back.
package subtitle

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/VietDucFCB/PureTone-Karaoke/pkg/models"
)

// Entry is one indexed subtitle record as written to disk.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// WriteSRT writes segments to outputPath in SubRip format: 1-based
// sequential indices, HH:MM:SS,mmm timestamps, trimmed text, input
// order preserved. Empty input produces a valid empty file. Output is
// deterministic: the same segments always produce identical bytes.
func WriteSRT(segments []models.TimedSegment, outputPath string) (string, error) {
	var b strings.Builder
	for i, segment := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("\n")
		b.WriteString(FormatTimestamp(segment.Start))
		b.WriteString(" --> ")
		b.WriteString(FormatTimestamp(segment.End))
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(segment.Text))
		b.WriteString("\n")
	}

	if err := os.WriteFile(outputPath, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write subtitles: %w", err)
	}
	return outputPath, nil
}

// ParseSRT reads a SubRip file back into entries. Used to verify
// written files round-trip to millisecond precision.
func ParseSRT(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitles: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	var entries []Entry
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			return nil, fmt.Errorf("malformed subtitle block: %q", block)
		}

		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			return nil, fmt.Errorf("bad subtitle index %q: %w", lines[0], err)
		}

		start, end, err := parseTimeLine(lines[1])
		if err != nil {
			return nil, err
		}

		entries = append(entries, Entry{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}

	return entries, nil
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	millis := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	secs := totalSeconds % 60
	mins := (totalSeconds / 60) % 60
	hours := totalSeconds / 3600

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, mins, secs, millis)
}

// ParseTimestamp reads an HH:MM:SS,mmm timestamp back to seconds.
func ParseTimestamp(s string) (float64, error) {
	var hours, mins, secs, millis int64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d:%d,%d", &hours, &mins, &secs, &millis); err != nil {
		return 0, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return float64(hours*3600+mins*60+secs) + float64(millis)/1000, nil
}

func parseTimeLine(line string) (start, end float64, err error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad subtitle time line %q", line)
	}
	if start, err = ParseTimestamp(parts[0]); err != nil {
		return 0, 0, err
	}
	if end, err = ParseTimestamp(parts[1]); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
