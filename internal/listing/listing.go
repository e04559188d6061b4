// Package listing parses directory listings into structured entries.
//
// The parser accepts the formats servers commonly return for LIST:
//
//   - Unix-style (9-field): perms links owner group size month day time/year name
//   - Unix-style (8-field): perms links owner size month day time/year name
//   - Unix-style with numeric permissions: 644 links owner group size ...
//   - DOS/Windows: MM-DD-YY HH:MMAM/PM size|<DIR> name
//   - EPLF: +facts\tname
//
// Lines no parser recognizes are kept as entries of type "unknown" carrying
// the raw text.
package listing

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry types.
const (
	TypeFile    = "file"
	TypeDir     = "dir"
	TypeLink    = "link"
	TypeUnknown = "unknown"
)

// Entry is one line of a directory listing.
type Entry struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Size        int64  `json:"size" yaml:"size"`
	Date        string `json:"date,omitempty" yaml:"date,omitempty"`
	Target      string `json:"target,omitempty" yaml:"target,omitempty"`
	Permissions string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	Owner       string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
	Raw         string `json:"raw" yaml:"raw"`
}

// Parser recognizes a single listing format.
type Parser interface {
	Parse(line string) (*Entry, bool)
}

// DefaultParsers is the order formats are tried in.
var DefaultParsers = []Parser{
	&EPLFParser{},
	&DOSParser{},
	&UnixParser{},
}

// Parse converts listing text into entries using DefaultParsers.
func Parse(text string) []Entry {
	return ParseWith(text, DefaultParsers)
}

// ParseWith converts listing text into entries, trying parsers in order.
func ParseWith(text string, parsers []Parser) []Entry {
	entries := []Entry{}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e := parseLine(scanner.Text(), parsers); e != nil {
			entries = append(entries, *e)
		}
	}

	return entries
}

func parseLine(line string, parsers []Parser) *Entry {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || isTotalLine(trimmed) {
		return nil
	}

	// Names may end in spaces; only the line terminator is dropped.
	content := strings.TrimLeft(strings.TrimRight(line, "\r\n"), " \t")
	for _, p := range parsers {
		if e, ok := p.Parse(content); ok {
			return e
		}
	}

	return &Entry{Name: trimmed, Type: TypeUnknown, Raw: line}
}

// isTotalLine matches the "total 12" header of ls -l.
func isTotalLine(line string) bool {
	fields := strings.Fields(line)
	if len(fields) != 2 || fields[0] != "total" {
		return false
	}
	_, err := strconv.ParseInt(fields[1], 10, 64)
	return err == nil
}

// UnixParser parses ls -l style lines.
type UnixParser struct{}

// Parse implements Parser.
func (p *UnixParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return nil, false
	}

	perms := fields[0]
	symbolic := strings.ContainsRune("-dlbcps", rune(perms[0]))
	numeric := len(perms) >= 3 && len(perms) <= 4
	for _, ch := range perms {
		if ch < '0' || ch > '7' {
			numeric = false
			break
		}
	}
	if !symbolic && !numeric {
		return nil, false
	}

	e := &Entry{Raw: line, Permissions: perms, Type: TypeFile}
	if symbolic {
		switch perms[0] {
		case 'd':
			e.Type = TypeDir
		case 'l':
			e.Type = TypeLink
		}
	}

	// 9-field has the group column, 8-field does not.
	var sizeIdx int
	switch {
	case len(fields) >= 9 && isNumber(fields[4]):
		sizeIdx = 4
		e.Owner = fields[2]
		e.Group = fields[3]
	case isNumber(fields[3]):
		sizeIdx = 3
		e.Owner = fields[2]
	default:
		return nil, false
	}

	nameIdx := sizeIdx + 4
	nameStart := fieldStart(line, nameIdx)
	if len(fields) <= nameIdx || nameStart < 0 {
		return nil, false
	}

	size, err := strconv.ParseInt(fields[sizeIdx], 10, 64)
	if err != nil {
		return nil, false
	}
	e.Size = size
	e.Date = strings.Join(fields[sizeIdx+1:nameIdx], " ")

	name := line[nameStart:]
	if e.Type == TypeLink {
		if before, after, ok := strings.Cut(name, " -> "); ok {
			e.Name = before
			e.Target = after
			return e, true
		}
	}
	e.Name = name

	return e, true
}

// DOSParser parses DOS/Windows style lines.
type DOSParser struct{}

// Parse implements Parser.
func (p *DOSParser) Parse(line string) (*Entry, bool) {
	fields := strings.Fields(line)
	nameStart := fieldStart(line, 3)
	if len(fields) < 4 || nameStart < 0 || !isDOSDate(fields[0]) {
		return nil, false
	}

	e := &Entry{
		Raw:  line,
		Date: fields[0] + " " + fields[1],
		Name: line[nameStart:],
	}

	if fields[2] == "<DIR>" {
		e.Type = TypeDir
		return e, true
	}

	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, false
	}
	e.Type = TypeFile
	e.Size = size

	return e, true
}

// EPLFParser parses EPLF lines, e.g. "+i8388621.48594,m825718503,r,s280,\tdjb.html".
type EPLFParser struct{}

// Parse implements Parser.
func (p *EPLFParser) Parse(line string) (*Entry, bool) {
	if !strings.HasPrefix(line, "+") {
		return nil, false
	}

	idx := strings.IndexAny(line, "\t ")
	if idx == -1 {
		return nil, false
	}
	facts, name := line[1:idx], line[idx+1:]
	if name == "" {
		return nil, false
	}

	e := &Entry{Raw: line, Name: name, Type: TypeFile}
	for _, fact := range strings.Split(facts, ",") {
		if fact == "" {
			continue
		}
		switch fact[0] {
		case '/':
			e.Type = TypeDir
		case 's':
			if size, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				e.Size = size
			}
		case 'm':
			if sec, err := strconv.ParseInt(fact[1:], 10, 64); err == nil {
				e.Date = time.Unix(sec, 0).UTC().Format(time.RFC3339)
			}
		}
	}

	return e, true
}

// Format renders e as an ls -l line that UnixParser reads back.
func Format(e Entry) string {
	perms := e.Permissions
	if perms == "" {
		switch e.Type {
		case TypeDir:
			perms = "drwxr-xr-x"
		case TypeLink:
			perms = "lrwxrwxrwx"
		default:
			perms = "-rw-r--r--"
		}
	}
	owner := orDash(e.Owner)
	group := orDash(e.Group)
	date := e.Date
	if len(strings.Fields(date)) != 3 {
		date = "Jan 1 1970"
	}

	name := e.Name
	if e.Type == TypeLink && e.Target != "" {
		name += " -> " + e.Target
	}

	return fmt.Sprintf("%s 1 %s %s %d %s %s", perms, owner, group, e.Size, date, name)
}

// Date formats t the way ls -l does: time of day for the last six months,
// year otherwise.
func Date(t, now time.Time) string {
	if t.After(now.AddDate(0, -6, 0)) && !t.After(now) {
		return t.Format("Jan 2 15:04")
	}
	return t.Format("Jan 2 2006")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// fieldStart returns the byte offset of field n (counting from 0) of line,
// with fields separated by runs of spaces and tabs, or -1 if line has fewer
// fields.
func fieldStart(line string, n int) int {
	i := 0
	for field := 0; ; field++ {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i == len(line) {
			return -1
		}
		if field == n {
			return i
		}
		for i < len(line) && line[i] != ' ' && line[i] != '\t' {
			i++
		}
	}
}

func isNumber(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// isDOSDate reports whether s looks like MM-DD-YY(YY) or MM/DD/YY(YY).
func isDOSDate(s string) bool {
	sep := "-"
	if !strings.Contains(s, "-") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return false
	}

	for i, part := range parts {
		if i < 2 && (len(part) < 1 || len(part) > 2) {
			return false
		}
		if i == 2 && len(part) != 2 && len(part) != 4 {
			return false
		}
		if !isNumber(part) {
			return false
		}
	}
	return true
}
