package activity

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"autominer/internal/model"
)

// Dialog phrases in priority order. Damage wins over everything else because
// the site appends cooldown hints to successful attack alerts.
var (
	damagePhrases   = []string{"피해를 주었습니다"}
	endedPhrases    = []string{"끝난", "폐광", "종료", "처치", "쓰러"}
	cooldownPhrases = []string{"이미", "잠시 후", "쿨타임", "대기", "소진"}
)

// ClassifyDialog maps raw alert text to an outcome category.
func ClassifyDialog(text string) model.Outcome {
	switch {
	case containsAny(text, damagePhrases):
		return model.OutcomeSuccess
	case containsAny(text, endedPhrases):
		return model.OutcomeTargetEnded
	case containsAny(text, cooldownPhrases):
		return model.OutcomeCooldownBlocked
	default:
		return model.OutcomeUnknown
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var (
	mineSuccessRe = regexp.MustCompile(`(?s)채굴 성공.*채굴 보상[^:]*:\s*([\d,]+)`)
	mineFailRe    = regexp.MustCompile(`(?s)채굴 실패.*실패 보상[^:]*:\s*([\d,]+)`)
	raidGainRe    = regexp.MustCompile(`([\d,]+)\s*포인트를?\s*흡수`)
	raidLossRe    = regexp.MustCompile(`([\d,]+)\s*포인트를?\s*(?:잃|빼앗)`)
	ageRe         = regexp.MustCompile(`(\d+)\s*(초|분|시간)\s*전`)
)

// ParseMiningFeedback extracts the net reward from a mining comment. A win
// pays gross minus the tool cost; a loss refunds part of the cost, so the
// reward is the negative remainder. ok is false when neither pattern matches.
func ParseMiningFeedback(text string, toolCost int) (reward int, success bool, ok bool) {
	if m := mineSuccessRe.FindStringSubmatch(text); m != nil {
		if gross, err := parseNumber(m[1]); err == nil {
			return gross - toolCost, true, true
		}
	}
	if m := mineFailRe.FindStringSubmatch(text); m != nil {
		if refund, err := parseNumber(m[1]); err == nil {
			return -(toolCost - refund), false, true
		}
	}
	return 0, false, false
}

// ParseRaidFeedback reads "N 포인트를 흡수" as +N and "N 포인트를 잃었" as -N.
func ParseRaidFeedback(text string) (int, bool) {
	if m := raidGainRe.FindStringSubmatch(text); m != nil {
		if n, err := parseNumber(m[1]); err == nil {
			return n, true
		}
	}
	if m := raidLossRe.FindStringSubmatch(text); m != nil {
		if n, err := parseNumber(m[1]); err == nil {
			return -n, true
		}
	}
	return 0, false
}

// ParseRelativeAge converts the site's relative timestamps ("방금", "12초 전",
// "3분 전", "1시간 전"). Absolute dates are reported as not relative.
func ParseRelativeAge(text string) (time.Duration, bool) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "방금") {
		return 0, true
	}
	m := ageRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "초":
		return time.Duration(n) * time.Second, true
	case "분":
		return time.Duration(n) * time.Minute, true
	default:
		return time.Duration(n) * time.Hour, true
	}
}

func parseNumber(s string) (int, error) {
	return strconv.Atoi(strings.ReplaceAll(s, ",", ""))
}

// Truncate shortens text to n runes for log fields.
func Truncate(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if n <= 0 || len(r) <= n {
		return text
	}
	return string(r[:n]) + "…"
}
