package model

// Target is one candidate on a mining or raid list page. It is scraped fresh
// on every attempt because liveness flips while the game runs.
type Target struct {
	URL   string `json:"url"`
	Name  string `json:"name,omitempty"`
	Alive bool   `json:"alive"`
}

// FindLiveTarget returns the first alive target in list order.
func FindLiveTarget(targets []Target) (Target, bool) {
	for _, t := range targets {
		if t.Alive {
			return t, true
		}
	}
	return Target{}, false
}

type Tool struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Cost     int    `json:"cost"`
	Disabled bool   `json:"disabled,omitempty"`
}

type Comment struct {
	ID     string `json:"id"`
	Author string `json:"author,omitempty"`
	Body   string `json:"body"`
	// Age is the site's relative time text, e.g. "12초 전".
	Age string `json:"age,omitempty"`
}
