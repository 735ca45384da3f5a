package activity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autominer/internal/config"
	"autominer/internal/model"
)

var listSel = config.ListSelectors{Item: "li.list-item", Link: ".wr-subject a.item-subject", EndDate: ".wr-date"}

func listItem(href, name, start, end string) string {
	return `<li class="list-item"><div class="wr-subject"><a class="item-subject" href="` + href + `">` + name +
		"\n<span>12</span></a></div>" +
		`<div class="wr-date">` + start + `</div><div class="wr-date">` + end + `</div></li>`
}

func listPage(items ...string) string {
	html := `<html><body><ul class="list-body">`
	for _, it := range items {
		html += it
	}
	return html + `</ul></body></html>`
}

func TestLivenessFromEndDate(t *testing.T) {
	a := listItem("/mine/1", "Mine A", "01-02", "")
	b := listItem("/mine/2", "Mine B", "01-01", "01-02")

	for _, html := range []string{listPage(a, b), listPage(b, a)} {
		live, ok := model.FindLiveTarget(ParseTargets(html, listSel))
		require.True(t, ok)
		assert.Equal(t, "/mine/1", live.URL)
		assert.Equal(t, "Mine A", live.Name)
	}

	_, ok := model.FindLiveTarget(ParseTargets(listPage(b), listSel))
	assert.False(t, ok)
}

func TestJavascriptLinkIsNotAlive(t *testing.T) {
	html := listPage(
		listItem("javascript:alert('종료된 레이드');", "Dead", "", ""),
		listItem("/monster/5", "Slime", "", ""),
	)
	targets := ParseTargets(html, listSel)
	require.Len(t, targets, 2)
	assert.False(t, targets[0].Alive)
	assert.True(t, targets[1].Alive)
}

func TestParseTargetsSkipsItemsWithoutLink(t *testing.T) {
	html := listPage(`<li class="list-item"><span>notice</span></li>`, listItem("/mine/3", "C", "", ""))
	targets := ParseTargets(html, listSel)
	require.Len(t, targets, 1)
	assert.Equal(t, "/mine/3", targets[0].URL)
}

const commentBoard = `<div id="bo_vc">
<div class="media" id="c_31"><div class="media-heading"><b class="member">miner</b><span class="media-info">방금</span></div><div class="media-content">50 포인트를 흡수</div></div>
<div class="media" id="c_30"><div class="media-heading"><b class="member">other</b><span class="media-info">2분 전</span></div><div class="media-content">hello</div></div>
</div>`

func TestParseComments(t *testing.T) {
	sel := config.CommentSelectors{Item: `#bo_vc .media[id^="c_"]`, Author: ".media-heading .member", Body: ".media-content", Age: ".media-heading .media-info"}
	cs := ParseComments(commentBoard, sel)
	require.Len(t, cs, 2)
	assert.Equal(t, model.Comment{ID: "c_31", Author: "miner", Body: "50 포인트를 흡수", Age: "방금"}, cs[0])
	assert.Equal(t, "c_31", LatestCommentID(commentBoard, sel))
	assert.Equal(t, "", LatestCommentID("<html></html>", sel))
}

func TestBestToolPrefersMostExpensive(t *testing.T) {
	html := `<form>
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_1" value="100"><label for="wr_player_mining_tool_1">곡괭이</label>
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_6" value="0"><label for="wr_player_mining_tool_6">배거288</label>
<input type="radio" name="wr_player_mining_tool" id="wr_player_mining_tool_7" value="5000" disabled>
</form>`
	tools := ParseTools(html, `input[name="wr_player_mining_tool"]`, map[string]int{"wr_player_mining_tool_6": 1000})
	require.Len(t, tools, 3)

	best, ok := BestTool(tools)
	require.True(t, ok)
	assert.Equal(t, "wr_player_mining_tool_6", best.ID)
	assert.Equal(t, 1000, best.Cost)
	assert.Equal(t, "배거288", best.Name)

	_, ok = BestTool([]model.Tool{{ID: "x", Disabled: true}})
	assert.False(t, ok)
}
