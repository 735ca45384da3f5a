package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autominer/internal/browser"
	"autominer/internal/browser/browsertest"
	"autominer/internal/model"
	"autominer/internal/provider"
)

const mineDetailURL = site + "/mine/2"

func comment(id, author, age, body string) string {
	return `<div class="media" id="` + id + `"><div class="media-heading"><b class="member">` + author +
		`</b><span class="media-info">` + age + `</span></div><div class="media-content">` + body + `</div></div>`
}

func mineDetail(comments ...string) string {
	html := `<html><body><form id="fmining">
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_1" value="100">
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_6" value="0">
<button type="button" class="raid_mining" id="btn_submit">채굴</button>
</form><div id="bo_vc">`
	for _, c := range comments {
		html += c
	}
	return html + `</div></body></html>`
}

func minePage() *browsertest.Page {
	p := browsertest.New()
	p.Set(site+"/mine", "광산", listPage(
		listItem("/mine/1", "Closed mine", "01-01", "01-02"),
		listItem("/mine/2", "Open mine", "01-03", ""),
	))
	p.Set(mineDetailURL, "광산", mineDetail(comment("c_10", "someone", "1분 전", "채굴 성공 (채굴 보상 : 900)")))
	return p
}

// onMine installs the site's reaction to the mine button.
func onMine(p *browsertest.Page, react func(p *browsertest.Page)) {
	p.OnClick = func(p *browsertest.Page, selector string) {
		if selector == "button.raid_mining#btn_submit" {
			react(p)
		}
	}
}

func TestMiningPaysNetOfToolCost(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	onMine(page, func(p *browsertest.Page) {
		p.SetCurrent(mineDetail(
			comment("c_11", "miner", "방금", "채굴 성공 (채굴 보상 : 1,266)"),
			comment("c_10", "someone", "1분 전", "채굴 성공 (채굴 보상 : 900)"),
		))
	})

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 266, res.Reward)
	assert.Equal(t, mineDetailURL, res.Target)
	assert.Equal(t, []string{site + "/mine", mineDetailURL}, page.Navs())
	assert.Equal(t, []string{"#wr_player_mining_tool_6", "button.raid_mining#btn_submit"}, page.Clicks())
}

func TestMiningLossComment(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	onMine(page, func(p *browsertest.Page) {
		p.SetCurrent(mineDetail(comment("c_11", "miner", "방금", "채굴 실패 (실패 보상 : 163)")))
	})

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, -837, res.Reward)
	assert.Equal(t, model.OutcomeLoss, res.Outcome)
	assert.True(t, res.Consumed())
}

func TestMiningDialogIsFailure(t *testing.T) {
	cfg := testConfig(t)
	env, bus := testEnv(t)
	page := minePage()
	onMine(page, func(p *browsertest.Page) {
		p.Emit("이미 채굴하셨습니다. 잠시 후 다시 시도하세요.")
		// a comment that shows up anyway must not be read
		p.SetCurrent(mineDetail(comment("c_11", "miner", "방금", "채굴 성공 (채굴 보상 : 5000)")))
	})

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Zero(t, res.Reward)
	assert.Equal(t, model.OutcomeCooldownBlocked, res.Outcome)
	assert.True(t, hasLog(bus, "warn", "mine refused"))
}

func TestMiningEndedMineDialog(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	onMine(page, func(p *browsertest.Page) { p.Emit("폐광된 광산입니다.") })

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeTargetEnded, res.Outcome)
}

func TestMiningSilenceIsSuccess(t *testing.T) {
	cfg := testConfig(t)
	env, bus := testEnv(t)
	page := minePage()

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.Reward)
	assert.True(t, hasLog(bus, "warn", "mined, no new comment"))
}

func TestMiningFirstAttemptWithoutBaseline(t *testing.T) {
	cfg := testConfig(t)
	env, bus := testEnv(t)
	page := minePage()
	page.Set(mineDetailURL, "광산", mineDetail())

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, hasLog(bus, "info", "mined, no baseline comment to compare"))
	assert.False(t, hasLog(bus, "warn", "mined, no new comment"))
}

func TestMiningUnparsedCommentIsSuccessWithoutReward(t *testing.T) {
	cfg := testConfig(t)
	env, bus := testEnv(t)
	page := minePage()
	onMine(page, func(p *browsertest.Page) {
		p.SetCurrent(mineDetail(comment("c_11", "miner", "방금", "채굴 완료")))
	})

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.Reward)
	assert.True(t, hasLog(bus, "warn", "mining feedback not recognised"))
}

func TestMiningNoLiveMine(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	page.Set(site+"/mine", "광산", listPage(listItem("/mine/1", "Closed", "01-01", "01-02")))

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, model.Failed(model.OutcomeNoTarget, "no live mine"), res)
	assert.Equal(t, []string{site + "/mine"}, page.Navs())
	assert.Empty(t, page.Clicks())
}

func TestMiningMissingButton(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	page.Set(mineDetailURL, "광산", `<html><body>점검 중</body></html>`)

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, page.Clicks())
}

func TestMiningDisabledButtonIsNotClicked(t *testing.T) {
	cfg := testConfig(t)
	env, bus := testEnv(t)
	page := minePage()
	page.Set(mineDetailURL, "광산", `<html><body>
<button type="button" class="raid_mining" id="btn_submit" disabled>채굴</button>
</body></html>`)

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "mine button disabled", res.Note)
	assert.Empty(t, page.Clicks())
	assert.True(t, hasLog(bus, "warn", "mine button disabled"))
}

func TestMiningFollowsSiteToNextDomain(t *testing.T) {
	const (
		oldSite = "https://www.site469.test"
		newSite = "https://www.site470.test"
	)
	cfg := testConfig(t)
	env, bus := testEnv(t)
	env.Site = provider.NewOrigin(oldSite)
	page := browsertest.New()
	page.Redirects[oldSite+"/mine"] = newSite + "/mine"
	page.Set(newSite+"/mine", "광산", listPage(listItem("/mine/2", "Open mine", "01-03", "")))
	page.Set(newSite+"/mine/2", "광산", mineDetail(comment("c_10", "someone", "1분 전", "채굴 성공 (채굴 보상 : 900)")))

	m := NewMining(env, cfg.Mining)
	res, err := m.Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, newSite+"/mine/2", res.Target)
	assert.Equal(t, newSite, env.Site.String())
	assert.True(t, hasLog(bus, "warn", "site moved"))

	res, err = m.Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, newSite+"/mine/2", res.Target)
	assert.Equal(t, []string{oldSite + "/mine", newSite + "/mine/2", newSite + "/mine", newSite + "/mine/2"}, page.Navs())
}

func TestMiningNavigationErrorIsResult(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	page.NavErr[site+"/mine"] = errors.New("net::ERR_CONNECTION_RESET")

	res, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestMiningDriverFaultPropagates(t *testing.T) {
	cfg := testConfig(t)
	env, _ := testEnv(t)
	page := minePage()
	page.Fatal = true

	_, err := NewMining(env, cfg.Mining).Attempt(context.Background(), page)
	assert.ErrorIs(t, err, browser.ErrDriverClosed)
}
