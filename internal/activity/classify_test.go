package activity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"autominer/internal/model"
)

func TestParseMiningFeedback(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		wantReward  int
		wantSuccess bool
		wantOK      bool
	}{
		{"win", "미네랄 채굴 성공! (채굴 보상 : 1266)", 266, true, true},
		{"win with separators", "채굴 성공 (채굴 보상 : 1,266)", 266, true, true},
		{"loss", "아쉽게도 채굴 실패... (실패 보상 : 163)", -837, false, true},
		{"multi line", "채굴 성공\n채굴 보상 : 2000", 1000, true, true},
		{"unrelated", "좋은 하루 되세요", 0, false, false},
		{"no number", "채굴 성공 (채굴 보상 : 없음)", 0, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reward, success, ok := ParseMiningFeedback(tc.text, 1000)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantSuccess, success)
			assert.Equal(t, tc.wantReward, reward)
		})
	}
}

func TestClassifyDialogDamageWins(t *testing.T) {
	assert.Equal(t, model.OutcomeSuccess, ClassifyDialog("몬스터에게 120의 피해를 주었습니다. 잠시 후 다시 공격할 수 있습니다."))
	assert.Equal(t, model.OutcomeSuccess, ClassifyDialog("피해를 주었습니다 (쿨타임 60초, 이미 종료 임박)"))
}

func TestClassifyDialog(t *testing.T) {
	assert.Equal(t, model.OutcomeTargetEnded, ClassifyDialog("이미 처치된 몬스터입니다."))
	assert.Equal(t, model.OutcomeTargetEnded, ClassifyDialog("폐광된 광산입니다."))
	assert.Equal(t, model.OutcomeCooldownBlocked, ClassifyDialog("이미 채굴하셨습니다."))
	assert.Equal(t, model.OutcomeCooldownBlocked, ClassifyDialog("잠시 후 다시 시도해 주세요."))
	assert.Equal(t, model.OutcomeUnknown, ClassifyDialog("로그인이 필요합니다."))
	assert.Equal(t, model.OutcomeUnknown, ClassifyDialog(""))
}

func TestParseRaidFeedback(t *testing.T) {
	n, ok := ParseRaidFeedback("[레이드] 50 포인트를 흡수했습니다!")
	assert.True(t, ok)
	assert.Equal(t, 50, n)

	n, ok = ParseRaidFeedback("반격을 받아 1,200포인트를 잃었습니다.")
	assert.True(t, ok)
	assert.Equal(t, -1200, n)

	n, ok = ParseRaidFeedback("몬스터가 30 포인트를 빼앗았습니다")
	assert.True(t, ok)
	assert.Equal(t, -30, n)

	_, ok = ParseRaidFeedback("공격!")
	assert.False(t, ok)
}

func TestParseRelativeAge(t *testing.T) {
	cases := map[string]time.Duration{
		"방금":      0,
		"방금 전":    0,
		"12초 전":   12 * time.Second,
		"3 분 전":   3 * time.Minute,
		"1시간 전":   time.Hour,
		" 45초 전 ": 45 * time.Second,
	}
	for in, want := range cases {
		got, ok := ParseRelativeAge(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseRelativeAge("01-02 13:40")
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "a b c", Truncate("a\n  b\tc", 10))
	assert.Equal(t, "채굴…", Truncate("채굴 성공", 2))
	assert.Equal(t, "abc", Truncate("abc", 0))
}
