package assistant

import (
	"regexp"
	"strconv"
)

var (
	productIDPattern = regexp.MustCompile(`商品\s*(?:id|ID|编号)\s*[:：=为是]?\s*(\d+)`)
	orderIDPattern   = regexp.MustCompile(`订单\s*?(?:id|ID|号|编号)\s*?[;:：=为是]?\s*(\d+)`)
	heightPattern    = regexp.MustCompile(`身高\s*[:：]?\s*(\d{2,3})`)
	weightPattern    = regexp.MustCompile(`体重\s*[:：]?\s*(\d{1,3})`)
)

func firstGroup(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractProductID finds a labelled product id such as "商品id为1".
func ExtractProductID(text string) (int64, bool) {
	return parseID(firstGroup(productIDPattern, text))
}

// ExtractOrderID finds a labelled order id such as "订单号为1".
func ExtractOrderID(text string) (int64, bool) {
	return parseID(firstGroup(orderIDPattern, text))
}

// ExtractHeight finds a labelled two or three digit height such as "身高175".
func ExtractHeight(text string) (int, bool) {
	return parseMeasure(firstGroup(heightPattern, text))
}

// ExtractWeight finds a labelled weight such as "体重:65".
func ExtractWeight(text string) (int, bool) {
	return parseMeasure(firstGroup(weightPattern, text))
}

// Malformed or overflowing numerals read as "not found".
func parseID(s string, ok bool) (int64, bool) {
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseMeasure(s string, ok bool) (int, bool) {
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatID(id int64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
