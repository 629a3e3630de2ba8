package core

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	urlPattern      = regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+`)
	phonePattern    = regexp.MustCompile(`1[3-9]\d{9}|qq[:：]?\s*\d{5,}|微信号?[:：]?\s*[a-zA-Z0-9_-]{4,}`)
	moneyPattern    = regexp.MustCompile(`\d+(\.\d+)?\s*[万千亿]|\d+(\.\d+)?\s*元|[¥￥$]\s*\d+`)
	percentPattern  = regexp.MustCompile(`(\d+)(\.\d+)?\s*%`)
	emphasisPattern = regexp.MustCompile(`[!！?？]{2,}`)
)

var contactTerms = []string{
	"加微信", "联系qq", "私信我", "留电话", "扫码进群",
	"微信号", "qq群", "电话咨询", "在线客服", "联系客服",
}

var urgencyTerms = []string{
	"赶紧", "立即", "马上", "快速", "紧急", "限时",
	"截止今晚", "最后一天", "错过后悔", "机不可失", "仅限今天",
}

// ExtractFeatures derives lexical signals from raw text. It is a pure
// function: no I/O, no failure mode. Empty input yields a zero FeatureSet.
func ExtractFeatures(text string) FeatureSet {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return FeatureSet{}
	}

	lowered := strings.ToLower(trimmed)

	fs := FeatureSet{
		Length:            utf8.RuneCountInString(trimmed),
		ExclamationRuns:   len(emphasisPattern.FindAllString(trimmed, -1)),
		URLCount:          len(urlPattern.FindAllString(lowered, -1)),
		PhonePatternCount: len(phonePattern.FindAllString(lowered, -1)),
		MoneyMentionCount: len(moneyPattern.FindAllString(trimmed, -1)),
	}

	for _, term := range contactTerms {
		if strings.Contains(lowered, term) {
			fs.ContactSolicitation = true
			break
		}
	}

	for _, term := range urgencyTerms {
		fs.UrgencyWordCount += strings.Count(lowered, term)
	}

	emphasisChars := 0
	for _, r := range trimmed {
		switch r {
		case '!', '！', '?', '？', '~', '～':
			emphasisChars++
		}
	}
	if fs.Length > 0 {
		fs.EmphasisRatio = float64(emphasisChars) / float64(fs.Length)
	}

	// A claimed return above 20% in a yield context is itself a signal.
	if strings.Contains(lowered, "收益") || strings.Contains(lowered, "回报") {
		for _, m := range percentPattern.FindAllStringSubmatch(lowered, -1) {
			if rate, err := strconv.Atoi(m[1]); err == nil && rate > 20 {
				fs.SuspiciousReturnRate = true
				break
			}
		}
	}

	return fs
}
