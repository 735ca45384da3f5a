package activity

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"autominer/internal/config"
	"autominer/internal/model"
)

func parseDoc(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// ParseTargets reads a game list page. A target is alive while its end-date
// cell (the second date element of the row) is empty and its link is real.
func ParseTargets(html string, sel config.ListSelectors) []model.Target {
	doc, err := parseDoc(html)
	if err != nil {
		return nil
	}
	var out []model.Target
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		link := item.Find(sel.Link).First()
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		name := firstLine(link.Text())

		alive := !strings.HasPrefix(strings.ToLower(href), "javascript:")
		dates := item.Find(sel.EndDate)
		if dates.Length() >= 2 && strings.TrimSpace(dates.Eq(1).Text()) != "" {
			alive = false
		}
		out = append(out, model.Target{URL: href, Name: name, Alive: alive})
	})
	return out
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// ParseComments returns the comments of a detail page in board order, which
// is newest first.
func ParseComments(html string, sel config.CommentSelectors) []model.Comment {
	doc, err := parseDoc(html)
	if err != nil {
		return nil
	}
	var out []model.Comment
	doc.Find(sel.Item).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		out = append(out, model.Comment{
			ID:     id,
			Author: strings.TrimSpace(s.Find(sel.Author).First().Text()),
			Body:   strings.TrimSpace(s.Find(sel.Body).First().Text()),
			Age:    strings.TrimSpace(s.Find(sel.Age).First().Text()),
		})
	})
	return out
}

// LatestCommentID is the id of the newest comment, or "" on an empty board.
func LatestCommentID(html string, sel config.CommentSelectors) string {
	if cs := ParseComments(html, sel); len(cs) > 0 {
		return cs[0].ID
	}
	return ""
}

// ParseTools lists the tool radios of a mining detail page. Costs come from
// config keyed by input id; unknown tools fall back to their value attribute.
func ParseTools(html, selector string, costs map[string]int) []model.Tool {
	doc, err := parseDoc(html)
	if err != nil {
		return nil
	}
	var out []model.Tool
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		if id == "" {
			return
		}
		cost, known := costs[id]
		if !known {
			v, _ := s.Attr("value")
			cost, _ = parseNumber(strings.TrimSpace(v))
		}
		_, disabled := s.Attr("disabled")
		name := strings.TrimSpace(doc.Find(`label[for="` + id + `"]`).First().Text())
		out = append(out, model.Tool{ID: id, Name: name, Cost: cost, Disabled: disabled})
	})
	return out
}

// BestTool picks the most expensive enabled tool. Its cooldown matches the
// base cooldown and its expected reward is the highest.
func BestTool(tools []model.Tool) (model.Tool, bool) {
	enabled := make([]model.Tool, 0, len(tools))
	for _, t := range tools {
		if !t.Disabled {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return model.Tool{}, false
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Cost > enabled[j].Cost })
	return enabled[0], true
}
