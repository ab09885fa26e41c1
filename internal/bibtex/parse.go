// Package bibtex converts between BibTeX text and paper metadata.
package bibtex

import (
	"errors"
	"strings"
	"time"

	"github.com/bibsync/bibsync/internal/reference"
)

// DefaultTimeout is the wall-clock budget for a single Parse call.
const DefaultTimeout = 10 * time.Second

// clockInterval is how many scanned bytes pass between deadline checks.
const clockInterval = 1024

// Entry is one parsed BibTeX entry.
type Entry struct {
	Type   string            `json:"entry_type"`   // Lowercased, e.g. "article"
	Key    string            `json:"citation_key"` // Trimmed citation key
	Fields map[string]string `json:"fields"`       // Lowercased name -> normalized value
	Raw    string            `json:"raw"`          // Source text without the leading '@'
}

// Metadata converts the entry into an incoming partial record.
func (e Entry) Metadata() reference.Metadata {
	return reference.FromFields(e.Fields)
}

// Document is the result of parsing a BibTeX text.
type Document struct {
	Entries []Entry       `json:"entries"`
	Skipped []*EntryError `json:"skipped,omitempty"`
}

// Parser parses BibTeX text. A Parser holds no per-call state and is safe for
// concurrent use.
type Parser struct {
	timeout time.Duration
	now     func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithTimeout sets the wall-clock budget. Non-positive values select
// DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Parser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock sets the time source used for the budget (for testing).
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// NewParser creates a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses text with a default parser and returns its entries in order
// of appearance. Malformed entries are skipped; see Parser.Parse.
func Parse(text string) ([]Entry, error) {
	doc, err := NewParser().Parse(text)
	if err != nil {
		return nil, err
	}
	return doc.Entries, nil
}

// Parse parses text into a Document.
//
// Blank text yields an empty document. Text without any '@' fails with
// ErrMalformedInput, as does text in which every entry is malformed or no
// entry can be found. Otherwise malformed entries are reported in
// Document.Skipped and parsing resumes at the next '@'. Exceeding the budget
// fails with ErrTimeout.
func (p *Parser) Parse(text string) (*Document, error) {
	doc := &Document{Entries: []Entry{}}
	if strings.TrimSpace(text) == "" {
		return doc, nil
	}
	if !strings.Contains(text, "@") {
		return nil, &ParseError{Reason: "input contains no '@'", Err: ErrMalformedInput}
	}

	s := &scanner{
		src:      text,
		now:      p.now,
		deadline: p.now().Add(p.timeout),
		macros:   make(map[string]string),
	}

	recognized := 0
	for {
		at := strings.IndexByte(s.src[s.pos:], '@')
		if at < 0 {
			break
		}
		start := s.pos + at
		s.pos = start + 1
		if err := s.checkClock(); err != nil {
			return nil, timeoutError()
		}
		if !s.looksLikeEntry() {
			continue
		}
		recognized++

		entry, ok, err := s.parseBlock(start)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				return nil, timeoutError()
			}
			doc.Skipped = append(doc.Skipped, &EntryError{
				Offset: start,
				Line:   strings.Count(text[:start], "\n") + 1,
				Reason: err.Error(),
			})
			s.pos = start + 1
			continue
		}
		if ok {
			doc.Entries = append(doc.Entries, entry)
		}
	}

	if len(doc.Entries) == 0 {
		if len(doc.Skipped) > 0 {
			return nil, &ParseError{Reason: doc.Skipped[0].Error(), Err: ErrMalformedInput}
		}
		if recognized == 0 {
			return nil, &ParseError{Reason: "no BibTeX entries found", Err: ErrMalformedInput}
		}
	}
	return doc, nil
}

func timeoutError() error {
	return &ParseError{
		Reason: "processing budget exceeded; the input may be too large or malformed",
		Err:    ErrTimeout,
	}
}

// monthMacros are the predefined @string abbreviations.
var monthMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March", "apr": "April",
	"may": "May", "jun": "June", "jul": "July", "aug": "August",
	"sep": "September", "oct": "October", "nov": "November", "dec": "December",
}

// scanner is the per-call parse state.
type scanner struct {
	src      string
	pos      int
	steps    int
	now      func() time.Time
	deadline time.Time
	macros   map[string]string
}

// syntaxError is a problem local to one entry.
type syntaxError string

func (e syntaxError) Error() string { return string(e) }

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

// advance moves one byte forward and periodically checks the deadline.
func (s *scanner) advance() error {
	s.pos++
	s.steps++
	if s.steps%clockInterval == 0 {
		return s.checkClock()
	}
	return nil
}

func (s *scanner) checkClock() error {
	if s.now().After(s.deadline) {
		return ErrTimeout
	}
	return nil
}

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

// looksLikeEntry reports whether the text after an '@' is an identifier
// followed by an opening delimiter. It does not move the scanner.
func (s *scanner) looksLikeEntry() bool {
	i := s.pos
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	if i >= len(s.src) || !isLetter(s.src[i]) {
		return false
	}
	for i < len(s.src) && isIdentChar(s.src[i]) {
		i++
	}
	for i < len(s.src) && isSpace(s.src[i]) {
		i++
	}
	return i < len(s.src) && (s.src[i] == '{' || s.src[i] == '(')
}

// parseBlock parses the block whose '@' is at start; s.pos is just past the
// '@'. ok is false for blocks that are not entries (@comment, @preamble,
// @string).
func (s *scanner) parseBlock(start int) (Entry, bool, error) {
	s.skipSpace()
	typ := strings.ToLower(s.readIdent())
	s.skipSpace()

	closer := byte('}')
	if s.peek() == '(' {
		closer = ')'
	}
	if err := s.advance(); err != nil {
		return Entry{}, false, err
	}

	switch typ {
	case "comment", "preamble":
		if err := s.skipBlock(closer); err != nil {
			return Entry{}, false, err
		}
		return Entry{}, false, nil
	case "string":
		fields, err := s.parseFields(closer)
		if err != nil {
			return Entry{}, false, err
		}
		for name, value := range fields {
			s.macros[name] = value
		}
		return Entry{}, false, nil
	}

	key, err := s.readKey(closer)
	if err != nil {
		return Entry{}, false, err
	}

	fields := map[string]string{}
	if s.peek() == closer {
		if err := s.advance(); err != nil {
			return Entry{}, false, err
		}
	} else {
		if err := s.advance(); err != nil { // past ','
			return Entry{}, false, err
		}
		if fields, err = s.parseFields(closer); err != nil {
			return Entry{}, false, err
		}
	}

	return Entry{
		Type:   typ,
		Key:    key,
		Fields: fields,
		Raw:    s.src[start+1 : s.pos],
	}, true, nil
}

func (s *scanner) readIdent() string {
	begin := s.pos
	for !s.eof() && isIdentChar(s.src[s.pos]) {
		s.pos++
	}
	return s.src[begin:s.pos]
}

// readKey reads the citation key up to the first ',' or the closing
// delimiter, leaving the scanner on that byte.
func (s *scanner) readKey(closer byte) (string, error) {
	begin := s.pos
	for {
		if s.eof() {
			return "", syntaxError("unterminated citation key")
		}
		c := s.src[s.pos]
		if c == ',' || c == closer {
			break
		}
		if c == '@' || c == '{' || c == '}' || c == '"' {
			return "", syntaxError("unexpected " + quoteByte(c) + " in citation key")
		}
		if err := s.advance(); err != nil {
			return "", err
		}
	}
	key := strings.TrimSpace(s.src[begin:s.pos])
	if key == "" {
		return "", syntaxError("missing citation key")
	}
	return key, nil
}

// parseFields reads "name = value" pairs until the closing delimiter and
// consumes it. Stray and trailing commas are tolerated; a repeated field keeps
// its last value.
func (s *scanner) parseFields(closer byte) (map[string]string, error) {
	fields := make(map[string]string)
	for {
		s.skipSpace()
		if s.eof() {
			return nil, syntaxError("unclosed entry")
		}
		switch c := s.peek(); {
		case c == closer:
			return fields, s.advance()
		case c == ',':
			if err := s.advance(); err != nil {
				return nil, err
			}
			continue
		}

		name := s.readFieldName()
		if name == "" {
			return nil, syntaxError("expected field name, found " + quoteByte(s.peek()))
		}
		s.skipSpace()
		if s.peek() != '=' {
			return nil, syntaxError("expected '=' after field " + name)
		}
		if err := s.advance(); err != nil {
			return nil, err
		}

		value, err := s.parseValue()
		if err != nil {
			return nil, err
		}
		fields[strings.ToLower(name)] = value

		s.skipSpace()
		if c := s.peek(); c != ',' && c != closer {
			if s.eof() {
				return nil, syntaxError("unclosed entry")
			}
			return nil, syntaxError("expected ',' or " + quoteByte(closer) + " after field " + name)
		}
	}
}

func (s *scanner) readFieldName() string {
	begin := s.pos
	for !s.eof() && isNameChar(s.src[s.pos]) {
		s.pos++
	}
	return s.src[begin:s.pos]
}

// parseValue reads one field value: delimited parts, numbers and macro names
// joined by '#'. The result has whitespace runs collapsed and is trimmed.
func (s *scanner) parseValue() (string, error) {
	var b strings.Builder
	for {
		s.skipSpace()
		var part string
		var err error
		switch c := s.peek(); {
		case c == '{':
			part, err = s.readBraced()
		case c == '"':
			part, err = s.readQuoted()
		case isDigit(c):
			part = s.readDigits()
		case isLetter(c):
			name := strings.ToLower(s.readFieldName())
			part = s.expand(name)
		case s.eof():
			return "", syntaxError("unclosed entry")
		default:
			return "", syntaxError("expected field value, found " + quoteByte(c))
		}
		if err != nil {
			return "", err
		}
		b.WriteString(part)

		s.skipSpace()
		if s.peek() != '#' {
			break
		}
		if err := s.advance(); err != nil {
			return "", err
		}
	}
	return braceCommands.Replace(collapseSpace(b.String())), nil
}

// braceCommands turns the LaTeX brace commands written by Serialize for
// unmatched braces back into literal braces.
var braceCommands = strings.NewReplacer(
	braceLeftCommand, "{",
	braceRightCommand, "}",
)

func (s *scanner) expand(name string) string {
	if v, ok := s.macros[name]; ok {
		return v
	}
	if v, ok := monthMacros[name]; ok {
		return v
	}
	return name
}

func (s *scanner) readDigits() string {
	begin := s.pos
	for !s.eof() && isDigit(s.src[s.pos]) {
		s.pos++
	}
	return s.src[begin:s.pos]
}

// readBraced reads a {...} value and returns its content without the outer
// braces. Nested braces are kept. As in BibTeX, every brace counts toward the
// depth, including one after a backslash.
func (s *scanner) readBraced() (string, error) {
	if err := s.advance(); err != nil { // past '{'
		return "", err
	}
	begin := s.pos
	depth := 1
	for {
		if s.eof() {
			return "", syntaxError("unbalanced braces in field value")
		}
		switch s.src[s.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				content := s.src[begin:s.pos]
				return content, s.advance()
			}
		}
		if err := s.advance(); err != nil {
			return "", err
		}
	}
}

// readQuoted reads a "..." value. A '"' inside braces or after a backslash
// does not end it.
func (s *scanner) readQuoted() (string, error) {
	if err := s.advance(); err != nil { // past '"'
		return "", err
	}
	begin := s.pos
	depth := 0
	for {
		if s.eof() {
			return "", syntaxError("unterminated quoted value")
		}
		switch s.src[s.pos] {
		case '\\':
			if s.pos+1 < len(s.src) && s.src[s.pos+1] == '"' {
				s.pos++
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return "", syntaxError("unbalanced braces in quoted value")
			}
		case '"':
			if depth == 0 {
				content := s.src[begin:s.pos]
				return content, s.advance()
			}
		}
		if err := s.advance(); err != nil {
			return "", err
		}
	}
}

// skipBlock skips a balanced @comment or @preamble body and its closer.
func (s *scanner) skipBlock(closer byte) error {
	opener := byte('{')
	if closer == ')' {
		opener = '('
	}
	depth := 1
	for {
		if s.eof() {
			return syntaxError("unclosed block")
		}
		switch s.src[s.pos] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s.advance()
			}
		}
		if err := s.advance(); err != nil {
			return err
		}
	}
}

func collapseSpace(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func quoteByte(c byte) string {
	if c == 0 {
		return "end of input"
	}
	return "'" + string(c) + "'"
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_' || c == '-'
}

// isNameChar reports whether c may appear in a field or macro name.
func isNameChar(c byte) bool {
	if c >= 0x80 {
		return true
	}
	if isSpace(c) {
		return false
	}
	switch c {
	case '=', ',', '{', '}', '(', ')', '"', '#', '@', '%', '\'':
		return false
	}
	return c > ' '
}
