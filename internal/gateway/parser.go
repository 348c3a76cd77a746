package gateway

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/shopspring/decimal"

	"settlematch/internal/domain"
)

// RecordParser extracts the identifying fields of a document out of its text.
type RecordParser interface {
	Parse(side domain.Side, text, locator string) (domain.Record, error)
}

// A-side documents are tagged settlement advices: fields sit behind
// colon-delimited numeric tags on a flat text body.
var (
	adviceRefPattern    = regexp.MustCompile(`:20:(\w+)`)
	adviceAmountPattern = regexp.MustCompile(`:32[AB]:(\d{6})([A-Z]{3})([\d,\.]+)`)
	adviceAcctPattern   = regexp.MustCompile(`:25:(\w+)`)
	adviceTrnPattern    = regexp.MustCompile(`:21:(\w+)`)
)

// B-side documents are XML payment instructions; the fields of interest are
// matched positionally in the raw text rather than through a full XML parse,
// which tolerates the mangled markup that text extraction tends to produce.
var (
	instrRefPattern    = regexp.MustCompile(`<MsgId>(.*?)</MsgId>`)
	instrAmountPattern = regexp.MustCompile(`<InstdAmt[^>]*>([\d\.]+)</InstdAmt>`)
	instrDebtorPattern = regexp.MustCompile(`(?s)<DbtrAcct>.*?<Id>.*?<IBAN>(.*?)</IBAN>`)
	instrCreditPattern = regexp.MustCompile(`(?s)<CdtrAcct>.*?<Id>.*?<IBAN>(.*?)</IBAN>`)
	instrTrnPattern    = regexp.MustCompile(`<EndToEndId>(.*?)</EndToEndId>`)
	instrDatePattern   = regexp.MustCompile(`<CreDtTm>(.*?)</CreDtTm>`)
)

// AdviceParser parses both document kinds into Records. Missing fields yield
// empty strings and a zero amount, never an error: a record is always produced
// from extracted text so that partially legible documents still enter matching.
type AdviceParser struct{}

// NewAdviceParser creates a new parser instance.
func NewAdviceParser() *AdviceParser {
	return &AdviceParser{}
}

// Parse implements RecordParser.
func (p *AdviceParser) Parse(side domain.Side, text, locator string) (domain.Record, error) {
	switch side {
	case domain.SideA:
		return p.parseAdvice(text, locator), nil
	case domain.SideB:
		return p.parseInstruction(text, locator), nil
	default:
		return domain.Record{}, fmt.Errorf("unknown side %d for %s", side, locator)
	}
}

func (p *AdviceParser) parseAdvice(text, locator string) domain.Record {
	rec := domain.Record{Locator: locator, Side: domain.SideA}

	if m := adviceRefPattern.FindStringSubmatch(text); m != nil {
		rec.Reference = m[1]
	}
	if m := adviceAmountPattern.FindStringSubmatch(text); m != nil {
		rec.Date = m[1]
		rec.Amount = parseAmount(strings.ReplaceAll(m[3], ",", "."), locator)
	}
	if m := adviceAcctPattern.FindStringSubmatch(text); m != nil {
		rec.DebitAccount = m[1]
	}
	if m := adviceTrnPattern.FindStringSubmatch(text); m != nil {
		rec.TransactionRef = m[1]
	}
	return rec
}

func (p *AdviceParser) parseInstruction(text, locator string) domain.Record {
	rec := domain.Record{Locator: locator, Side: domain.SideB}

	if m := instrRefPattern.FindStringSubmatch(text); m != nil {
		rec.Reference = m[1]
	}
	if m := instrAmountPattern.FindStringSubmatch(text); m != nil {
		rec.Amount = parseAmount(m[1], locator)
	}
	if m := instrDebtorPattern.FindStringSubmatch(text); m != nil {
		rec.DebitAccount = m[1]
	}
	if m := instrCreditPattern.FindStringSubmatch(text); m != nil {
		rec.CreditAccount = m[1]
	}
	if m := instrTrnPattern.FindStringSubmatch(text); m != nil {
		rec.TransactionRef = m[1]
	}
	if m := instrDatePattern.FindStringSubmatch(text); m != nil {
		if len(m[1]) >= 8 {
			rec.Date = m[1][:8]
		} else {
			rec.Date = m[1]
		}
	}
	return rec
}

// parseAmount falls back to zero when the matched amount text is not a valid
// decimal; the record still participates in matching on its other keys.
func parseAmount(s, locator string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Warnf("[Parser] unparseable amount %q in %s, defaulting to 0", s, locator)
		return decimal.Zero
	}
	return d
}
