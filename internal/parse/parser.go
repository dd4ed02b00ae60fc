package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parser applies the layered extraction rules. It is stateless apart from
// compiled patterns and an injectable clock, so a single instance is safe
// for concurrent use.
type Parser struct {
	now func() time.Time
}

// Option configures a Parser.
type Option func(*Parser)

// WithNow overrides the clock used to resolve relative dates.
func WithNow(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

// NewParser creates a parser with the default clock.
func NewParser(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const numberPat = `[0-9][0-9,]*(?:\.[0-9]+)?`

// Substrings that must never be read as monetary quantities: dates, times,
// ordinals, month and weekday names. Removed before amount extraction.
var scrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}`),
	regexp.MustCompile(`\d{1,2}:\d{2}(?::\d{2})?`),
	regexp.MustCompile(`\d{1,2}/\d{1,2}`),
	regexp.MustCompile(`\d{1,2}月(?:\d{1,2}[日號])?`),
	regexp.MustCompile(`[一二兩三四五六七八九十]+月(?:[一二兩三四五六七八九十]+[日號])?`),
	regexp.MustCompile(`(?i)(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)\.?(?:\s*\d{1,2}(?:st|nd|rd|th)?)?`),
	regexp.MustCompile(`第\s*[0-9一二兩三四五六七八九十百]+\s*[次個名天筆]?`),
	regexp.MustCompile(`(?i)\d+(?:st|nd|rd|th)\b`),
	regexp.MustCompile(`(?:星期|週|周|禮拜)[一二三四五六日天]`),
}

const currencyTokenPat = `新台幣|台幣|美金|美元|日圓|日元|人民幣|歐元|英鎊|韓元|港幣|NT\$|US\$|\b(?:NTD|TWD|USD|JPY|EUR|CNY|RMB|GBP|KRW|HKD)\b|[$€£¥₩]`

var (
	currencyRe     = regexp.MustCompile(`(?i)` + currencyTokenPat)
	unitAmountRe   = regexp.MustCompile(`(` + numberPat + `)\s*(?:塊錢|塊|元|圓)`)
	unitAmountEnRe = regexp.MustCompile(`(?i)(` + numberPat + `)\s*(?:dollars?|bucks?)\b`)
	wordAmountRe   = regexp.MustCompile(`([零〇一二兩三四五六七八九十百千萬]+)\s*(?:塊錢|塊|元|圓)`)
	codeBeforeRe   = regexp.MustCompile(`(?i)(?:` + currencyTokenPat + `)\s*(` + numberPat + `)`)
	codeAfterRe    = regexp.MustCompile(`(?i)(` + numberPat + `)\s*(?:` + currencyTokenPat + `)`)
	groupedNumRe   = regexp.MustCompile(`\d{1,3}(?:,\d{3})+(?:\.\d+)?`)
	plainNumRe     = regexp.MustCompile(numberPat)

	isoDateRe = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)
	cjkDateRe = regexp.MustCompile(`(\d{1,2})月(\d{1,2})[日號]`)
	mdDateRe  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)

	claimAmountRe = regexp.MustCompile(`(?i)(?:請款|報帳|claim(?:\s+amount)?)\s*(` + numberPat + `)`)
)

// currencySynonyms maps each matched token to its ISO code. Tokens are
// matched case-insensitively; longer tokens appear first in the pattern so
// 美元 wins over a bare 元 unit word.
var currencySynonyms = map[string]string{
	"新台幣": "TWD", "台幣": "TWD", "nt$": "TWD", "ntd": "TWD", "twd": "TWD",
	"美金": "USD", "美元": "USD", "us$": "USD", "usd": "USD", "$": "USD",
	"日圓": "JPY", "日元": "JPY", "jpy": "JPY", "¥": "JPY",
	"人民幣": "CNY", "cny": "CNY", "rmb": "CNY",
	"歐元": "EUR", "eur": "EUR", "€": "EUR",
	"英鎊": "GBP", "gbp": "GBP", "£": "GBP",
	"韓元": "KRW", "krw": "KRW", "₩": "KRW",
	"港幣": "HKD", "hkd": "HKD",
}

var localUnitWords = []string{"塊錢", "塊", "元", "圓"}

var incomeKeywords = []string{
	"收入", "薪水", "薪資", "獎金", "退款", "入帳", "進帳", "賺", "領到",
	"salary", "income", "bonus", "refund", "earned", "received",
}

var expenseKeywords = []string{
	"支出", "消費", "買", "花", "付", "繳",
	"bought", "spent", "paid", "buy", "pay", "cost",
}

var unclaimedKeywords = []string{
	"不用請款", "不需請款", "不需要請款", "無需請款", "免請款", "不請款",
	"no need to claim", "no claim", "don't claim", "dont claim", "unclaimed",
}

var claimedKeywords = []string{
	"已請款", "已報帳", "請款完成", "claimed", "reimbursed",
}

type hint struct {
	keyword string
	value   string
}

var categoryHints = []hint{
	{"早餐", "餐飲"}, {"午餐", "餐飲"}, {"晚餐", "餐飲"}, {"宵夜", "餐飲"},
	{"breakfast", "餐飲"}, {"lunch", "餐飲"}, {"dinner", "餐飲"},
	{"咖啡", "飲料"}, {"飲料", "飲料"}, {"奶茶", "飲料"}, {"coffee", "飲料"}, {"tea", "飲料"},
	{"捷運", "交通"}, {"公車", "交通"}, {"計程車", "交通"}, {"高鐵", "交通"}, {"加油", "交通"},
	{"uber", "交通"}, {"taxi", "交通"}, {"bus", "交通"},
	{"房租", "居住"}, {"rent", "居住"},
	{"電影", "娛樂"}, {"movie", "娛樂"}, {"遊戲", "娛樂"},
	{"藥", "醫療"}, {"診所", "醫療"}, {"醫院", "醫療"},
	{"薪水", "薪資"}, {"salary", "薪資"},
}

var motivationHints = []hint{
	{"必要", "need"}, {"需要", "need"}, {"necessary", "need"},
	{"想要", "want"}, {"want", "want"},
	{"衝動", "impulse"}, {"impulse", "impulse"},
}

var emotionHints = []hint{
	{"開心", "happy"}, {"happy", "happy"},
	{"難過", "sad"}, {"sad", "sad"},
	{"生氣", "angry"}, {"angry", "angry"},
	{"無聊", "bored"}, {"bored", "bored"},
	{"壓力", "stressed"}, {"stress", "stressed"},
}

// Parse extracts an Intent from one line of text. It never fails; fields the
// text gave no signal for are simply left empty.
func (p *Parser) Parse(text string) Intent {
	in := Intent{Note: text}
	lower := strings.ToLower(text)

	in.Type = detectType(lower)
	in.Currency = detectCurrency(lower)
	in.Amount = extractAmount(text)
	in.Date = p.extractDate(lower)
	p.extractClaim(&in, lower)

	in.CategoryName = firstHint(lower, categoryHints)
	in.Motivation = firstHint(lower, motivationHints)
	in.Emotion = firstHint(lower, emotionHints)

	return in
}

func detectType(lower string) string {
	for _, kw := range incomeKeywords {
		if strings.Contains(lower, kw) {
			return TypeIncome
		}
	}
	for _, kw := range expenseKeywords {
		if strings.Contains(lower, kw) {
			return TypeExpense
		}
	}
	return ""
}

func detectCurrency(lower string) string {
	if m := currencyRe.FindString(lower); m != "" {
		if code, ok := currencySynonyms[strings.ToLower(m)]; ok {
			return code
		}
	}
	// A local unit word (元, 塊) with no explicit code implies TWD.
	for _, unit := range localUnitWords {
		if strings.Contains(lower, unit) {
			return "TWD"
		}
	}
	return ""
}

// extractAmount applies the priority order from §unit-adjacent down to bare
// numbers, on a copy scrubbed of temporal and ordinal substrings.
func extractAmount(text string) *float64 {
	scrubbed := Scrub(text)

	for _, re := range []*regexp.Regexp{unitAmountRe, unitAmountEnRe} {
		if m := re.FindStringSubmatch(scrubbed); m != nil {
			return parseNumber(m[1])
		}
	}
	if m := wordAmountRe.FindStringSubmatch(scrubbed); m != nil {
		if v, ok := ParseNumeral(m[1]); ok && v > 0 {
			f := float64(v)
			return &f
		}
	}
	for _, re := range []*regexp.Regexp{codeBeforeRe, codeAfterRe} {
		if m := re.FindStringSubmatch(scrubbed); m != nil {
			return parseNumber(m[1])
		}
	}
	if m := groupedNumRe.FindString(scrubbed); m != "" {
		return parseNumber(m)
	}
	if m := plainNumRe.FindString(scrubbed); m != "" {
		return parseNumber(m)
	}
	return nil
}

// Scrub removes date-like, time-like and ordinal-like substrings so that
// "10:30", "3rd time" or "十月" cannot be read as quantities.
func Scrub(text string) string {
	for _, re := range scrubPatterns {
		text = re.ReplaceAllString(text, " ")
	}
	return text
}

func parseNumber(s string) *float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

func (p *Parser) extractDate(lower string) string {
	if m := isoDateRe.FindStringSubmatch(lower); m != nil {
		if d, ok := calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3])); ok {
			return d
		}
	}
	if m := cjkDateRe.FindStringSubmatch(lower); m != nil {
		if d, ok := calendarDate(p.now().Year(), atoi(m[1]), atoi(m[2])); ok {
			return d
		}
	}
	if m := mdDateRe.FindStringSubmatch(lower); m != nil {
		if d, ok := calendarDate(p.now().Year(), atoi(m[1]), atoi(m[2])); ok {
			return d
		}
	}
	return p.relativeDate(lower)
}

func (p *Parser) relativeDate(lower string) string {
	today := p.now()
	switch {
	case strings.Contains(lower, "前天") || strings.Contains(lower, "day before yesterday"):
		return today.AddDate(0, 0, -2).Format("2006-01-02")
	case strings.Contains(lower, "昨天") || strings.Contains(lower, "昨日") || strings.Contains(lower, "yesterday"):
		return today.AddDate(0, 0, -1).Format("2006-01-02")
	case strings.Contains(lower, "明天") || strings.Contains(lower, "tomorrow"):
		return today.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(lower, "今天") || strings.Contains(lower, "today"):
		return today.Format("2006-01-02")
	}
	return ""
}

func (p *Parser) extractClaim(in *Intent, lower string) {
	if m := claimAmountRe.FindStringSubmatch(lower); m != nil {
		in.ClaimAmount = parseNumber(m[1])
	}
	// Unclaimed synonyms take precedence: "不用請款" must not read as 請款.
	for _, kw := range unclaimedKeywords {
		if strings.Contains(lower, kw) {
			v := false
			in.Claimed = &v
			in.ClaimAmount = nil
			return
		}
	}
	for _, kw := range claimedKeywords {
		if strings.Contains(lower, kw) {
			v := true
			in.Claimed = &v
			return
		}
	}
}

func firstHint(lower string, hints []hint) string {
	for _, h := range hints {
		if strings.Contains(lower, h.keyword) {
			return h.value
		}
	}
	return ""
}

// AmountAdjacent reports whether the exact amount appears in text
// immediately adjacent to a currency unit word or currency code. Used to
// reject quantities a language model may have hallucinated.
func AmountAdjacent(text string, amount float64) bool {
	for _, num := range amountForms(amount) {
		q := regexp.QuoteMeta(num)
		before := regexp.MustCompile(`(?i)(?:` + currencyTokenPat + `)\s*` + q + `\b`)
		after := regexp.MustCompile(`(?i)\b` + q + `\s*(?:塊錢|塊|元|圓|dollars?|bucks?|` + currencyTokenPat + `)`)
		if before.MatchString(text) || after.MatchString(text) {
			return true
		}
	}
	return false
}

// amountForms returns the textual spellings of a number worth searching for:
// the plain form and, for integers above 999, the comma-grouped form.
func amountForms(amount float64) []string {
	plain := strconv.FormatFloat(amount, 'f', -1, 64)
	forms := []string{plain}
	if amount == float64(int64(amount)) && amount >= 1000 {
		forms = append(forms, groupThousands(int64(amount)))
	}
	return forms
}

func groupThousands(v int64) string {
	s := strconv.FormatInt(v, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func atoi(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}

func calendarDate(y, m, d int) (string, bool) {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != m || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}
