// Package ticket contains pure helpers for a raffle's ticket index space:
// formatting zero-based indices as display numbers according to a raffle's
// numbering configuration, parsing display numbers back to indices, and
// compressing index sets into contiguous ranges for compact storage.
package ticket

import (
	"strconv"
	"strings"
)

// Numbering describes how a raffle maps ticket indices to display numbers.
// A zero-based index i corresponds to the number StartNumber + i*Step,
// optionally zero-padded and wrapped with a prefix and suffix.
//
// Fields:
//
//	StartNumber – number assigned to index 0 (0 is a valid start).
//	Step        – distance between consecutive ticket numbers (>= 1).
//	PadEnabled  – whether the numeric part is left-padded to PadWidth.
//	PadWidth    – width the number is padded to when padding is enabled.
//	PadChar     – single character used for padding (default "0").
//	Prefix      – text placed before the number.
//	Suffix      – text placed after the number.
//	Separator   – text inserted between prefix/number and number/suffix.
type Numbering struct {
	StartNumber int    // raffles.start_number
	Step        int    // raffles.step
	PadEnabled  bool   // raffles.pad_enabled
	PadWidth    int    // raffles.pad_width
	PadChar     string // raffles.pad_char
	Prefix      string // raffles.prefix
	Suffix      string // raffles.suffix
	Separator   string // raffles.separator
}

// Defaulted returns a copy of the configuration with unset fields replaced
// by their defaults. Step falls back to 1, PadChar to "0" and PadWidth to
// the digit length of totalTickets. StartNumber is deliberately left alone:
// an explicit start of 0 is respected rather than being treated as unset
// (column defaults supply 1 when the organizer never configured a start).
func (n Numbering) Defaulted(totalTickets int) Numbering {
	out := n
	if out.Step < 1 {
		out.Step = 1
	}
	if out.PadChar == "" {
		out.PadChar = "0"
	}
	if out.PadWidth < 1 {
		out.PadWidth = len(strconv.Itoa(totalTickets))
	}
	return out
}

// Format renders the display string for a zero-based ticket index. Callers
// should normalize the configuration with Defaulted first; Format itself
// performs no bounds checking.
func (n Numbering) Format(index int) string {
	step := n.Step
	if step < 1 {
		step = 1
	}
	num := strconv.Itoa(n.StartNumber + index*step)
	if n.PadEnabled && len(num) < n.PadWidth {
		pad := n.PadChar
		if pad == "" {
			pad = "0"
		}
		num = strings.Repeat(pad[:1], n.PadWidth-len(num)) + num
	}
	var b strings.Builder
	if n.Prefix != "" {
		b.WriteString(n.Prefix)
		b.WriteString(n.Separator)
	}
	b.WriteString(num)
	if n.Suffix != "" {
		b.WriteString(n.Separator)
		b.WriteString(n.Suffix)
	}
	return b.String()
}

// ParseIndex extracts the ticket index encoded in a display string. The
// longest contiguous digit run in the string is taken as the number; when
// several runs share that length the leftmost one wins. The parsed number
// must align with the configured start and step. The second return value is
// false when no index could be recovered.
func (n Numbering) ParseIndex(s string) (int, bool) {
	run := longestDigitRun(s)
	if run == "" {
		return -1, false
	}
	num, err := strconv.Atoi(run)
	if err != nil {
		// Digit run longer than an int; no valid ticket number is that large.
		return -1, false
	}
	step := n.Step
	if step < 1 {
		step = 1
	}
	diff := num - n.StartNumber
	if diff < 0 || diff%step != 0 {
		return -1, false
	}
	return diff / step, true
}

// longestDigitRun returns the longest contiguous run of ASCII digits in s,
// keeping the first run on ties. It returns "" when s contains no digits.
func longestDigitRun(s string) string {
	bestStart, bestLen := 0, 0
	curStart, curLen := 0, 0
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] >= '0' && s[i] <= '9' {
			if curLen == 0 {
				curStart = i
			}
			curLen++
			continue
		}
		if curLen > bestLen {
			bestStart, bestLen = curStart, curLen
		}
		curLen = 0
	}
	if bestLen == 0 {
		return ""
	}
	return s[bestStart : bestStart+bestLen]
}
