// Package codec converts accounts and transactions to and from the flat
// line-oriented documents the store persists.
//
// A document is a "[" line, one record per line with a trailing "," on every
// record but the last, and a "]" line. Each record is a single-line object
// with a fixed field order. Decoding is tolerant: it locates each field by its
// key marker, so reordered, missing or malformed fields decode to zero values
// instead of failing the whole document.
package codec

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"atm-ledger/pkg/ledger"
)

// Record keys, in encode order.
const (
	keyAccountNumber = "accountNumber"
	keyUsername      = "username"
	keyPassword      = "password"
	keyName          = "name"
	keyAccountType   = "accountType"
	keyCardNumber    = "cardNumber"
	keyCardPin       = "cardPin"
	keyHasCard       = "hasCard"
	keyBalance       = "balance"
	keyTimestamp     = "timestamp"
	keyType          = "type"
	keyAmount        = "amount"
)

// EncodeAccount renders a single account record.
func EncodeAccount(a ledger.Account) string {
	var w recordWriter
	w.str(keyAccountNumber, a.AccountNumber)
	w.str(keyUsername, a.Username)
	w.str(keyPassword, a.Password)
	w.str(keyName, a.Name)
	w.str(keyAccountType, string(a.AccountType))
	w.str(keyCardNumber, a.CardNumber)
	w.str(keyCardPin, a.CardPin)
	w.raw(keyHasCard, strconv.FormatBool(a.HasCard))
	w.raw(keyBalance, formatFloat(a.Balance))
	return w.String()
}

// DecodeAccount extracts an account from a single record line.
func DecodeAccount(line string) ledger.Account {
	r := recordReader(line)
	return ledger.Account{
		AccountNumber: r.str(keyAccountNumber),
		Username:      r.str(keyUsername),
		Password:      r.str(keyPassword),
		Name:          r.str(keyName),
		AccountType:   ledger.AccountType(r.str(keyAccountType)),
		CardNumber:    r.str(keyCardNumber),
		CardPin:       r.str(keyCardPin),
		HasCard:       r.raw(keyHasCard) == "true",
		Balance:       r.float(keyBalance),
	}
}

// EncodeTransaction renders a single transaction record.
func EncodeTransaction(t ledger.Transaction) string {
	var w recordWriter
	w.str(keyTimestamp, t.Timestamp)
	w.str(keyAccountNumber, t.AccountNumber)
	w.str(keyType, t.Type)
	w.raw(keyAmount, formatFloat(t.Amount))
	w.raw(keyBalance, formatFloat(t.Balance))
	return w.String()
}

// DecodeTransaction extracts a transaction from a single record line.
func DecodeTransaction(line string) ledger.Transaction {
	r := recordReader(line)
	return ledger.Transaction{
		Timestamp:     r.str(keyTimestamp),
		AccountNumber: r.str(keyAccountNumber),
		Type:          r.str(keyType),
		Amount:        r.float(keyAmount),
		Balance:       r.float(keyBalance),
	}
}

// EncodeAccounts renders a full accounts document.
func EncodeAccounts(accounts []ledger.Account) []byte {
	return encodeDocument(accounts, EncodeAccount)
}

// DecodeAccounts parses an accounts document.
func DecodeAccounts(data []byte) []ledger.Account {
	return decodeDocument(data, DecodeAccount)
}

// EncodeTransactions renders a full transactions document.
func EncodeTransactions(transactions []ledger.Transaction) []byte {
	return encodeDocument(transactions, EncodeTransaction)
}

// DecodeTransactions parses a transactions document.
func DecodeTransactions(data []byte) []ledger.Transaction {
	return decodeDocument(data, DecodeTransaction)
}

func encodeDocument[T any](records []T, encode func(T) string) []byte {
	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, rec := range records {
		buf.WriteString(encode(rec))
		if i != len(records)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("]\n")
	return buf.Bytes()
}

func decodeDocument[T any](data []byte, decode func(string) T) []T {
	var records []T
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || line == "[" || line == "]" {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		records = append(records, decode(line))
	}
	return records
}

// formatFloat writes the shortest decimal that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type recordWriter struct {
	sb     strings.Builder
	fields int
}

func (w *recordWriter) key(k string) {
	if w.fields == 0 {
		w.sb.WriteByte('{')
	} else {
		w.sb.WriteByte(',')
	}
	w.fields++
	w.sb.WriteByte('"')
	w.sb.WriteString(k)
	w.sb.WriteString(`":`)
}

func (w *recordWriter) str(k, v string) {
	w.key(k)
	w.sb.WriteString(quote(v))
}

func (w *recordWriter) raw(k, v string) {
	w.key(k)
	w.sb.WriteString(v)
}

func (w *recordWriter) String() string {
	if w.fields == 0 {
		return "{}"
	}
	return w.sb.String() + "}"
}

// quote escapes only '"', '\\' and control bytes, so any other byte,
// including invalid UTF-8, is written through unchanged.
func quote(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigits[c>>4])
				sb.WriteByte(hexDigits[c&0xf])
				continue
			}
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

const hexDigits = "0123456789abcdef"

// unquote reverses quote. It also accepts the other JSON escapes, \/ \b \f
// and surrogate pairs, so documents written by JSON encoders still decode.
// A malformed escape is kept verbatim.
func unquote(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}

	buf := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			buf = append(buf, c)
			continue
		}

		i++
		switch body[i] {
		case '"', '\\', '/':
			buf = append(buf, body[i])
		case 'n':
			buf = append(buf, '\n')
		case 'r':
			buf = append(buf, '\r')
		case 't':
			buf = append(buf, '\t')
		case 'b':
			buf = append(buf, '\b')
		case 'f':
			buf = append(buf, '\f')
		case 'u':
			r, n := unicodeEscape(body[i+1:])
			if n == 0 {
				buf = append(buf, '\\', 'u')
				continue
			}
			i += n
			buf = utf8.AppendRune(buf, r)
		default:
			buf = append(buf, '\\', body[i])
		}
	}
	return string(buf)
}

// unicodeEscape decodes the XXXX of \uXXXX, joining a following low
// surrogate escape when present. It returns the rune and the bytes consumed.
func unicodeEscape(s string) (rune, int) {
	r, ok := hex4(s)
	if !ok {
		return 0, 0
	}
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if low, ok := hex4(s[6:]); ok {
			if joined := utf16.DecodeRune(r, low); joined != utf8.RuneError {
				return joined, 10
			}
		}
	}
	return r, 4
}

func hex4(s string) (rune, bool) {
	if len(s) < 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}

// recordReader finds fields in one record line by their key markers.
type recordReader string

// str returns the quoted value following "key":". Absent keys yield "".
func (r recordReader) str(key string) string {
	line := string(r)
	marker := `"` + key + `":"`
	start := strings.Index(line, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)

	end := start
	for end < len(line) {
		if line[end] == '\\' {
			end += 2
			continue
		}
		if line[end] == '"' {
			break
		}
		end++
	}
	if end > len(line) {
		end = len(line)
	}

	return unquote(line[start:end])
}

// raw returns the unquoted token following "key": up to the next ',' or '}'.
func (r recordReader) raw(key string) string {
	line := string(r)
	marker := `"` + key + `":`
	start := strings.Index(line, marker)
	if start < 0 {
		return ""
	}
	start += len(marker)

	end := strings.IndexAny(line[start:], ",}")
	if end < 0 {
		return strings.TrimSpace(line[start:])
	}
	return strings.TrimSpace(line[start : start+end])
}

func (r recordReader) float(key string) float64 {
	v, err := strconv.ParseFloat(r.raw(key), 64)
	if err != nil {
		return 0
	}
	return v
}
