package parse

// Chinese numeral words are positional with magnitude markers: 十 (tens),
// 百 (hundreds), 千 (thousands) accumulate into a section, and 萬
// (ten-thousands) closes a section. 兩 is a spoken variant of 二.

var numeralDigits = map[rune]int64{
	'零': 0, '〇': 0,
	'一': 1, '二': 2, '兩': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var numeralMagnitudes = map[rune]int64{
	'十': 10, '百': 100, '千': 1000,
}

// ParseNumeral converts a Chinese numeral word like 三千五百 into its integer
// value. It returns false for an empty string or any rune outside the
// numeral alphabet.
func ParseNumeral(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var total, section, digit int64
	for _, r := range s {
		if v, ok := numeralDigits[r]; ok {
			digit = v
			continue
		}
		if m, ok := numeralMagnitudes[r]; ok {
			if digit == 0 {
				digit = 1 // leading 十 means 10, 十五 means 15
			}
			section += digit * m
			digit = 0
			continue
		}
		if r == '萬' {
			section += digit
			if section == 0 {
				section = 1
			}
			total += section * 10000
			section = 0
			digit = 0
			continue
		}
		return 0, false
	}
	return total + section + digit, true
}
