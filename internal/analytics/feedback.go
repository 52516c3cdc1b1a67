package analytics

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"controltower/internal/model"
)

type WeeklyRating struct {
	WeekStart time.Time `json:"weekStart"`
	Responses int       `json:"responses"`
	AvgRating float64   `json:"avgRating"`
}

type IssueRating struct {
	Issue     string   `json:"issue"`
	Count     int      `json:"count"`
	AvgRating *float64 `json:"avgRating"`
}

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

type RatingDelay struct {
	OrderID   string  `json:"orderId"`
	Rating    float64 `json:"rating"`
	DelayDays float64 `json:"delayDays"`
}

type FeedbackInsights struct {
	Responses   int            `json:"responses"`
	Weekly      []WeeklyRating `json:"weekly"`
	ByIssue     []IssueRating  `json:"byIssue"`
	TopWords    []WordCount    `json:"topWords"`
	RatingDelay []RatingDelay  `json:"ratingVsDelay"`
}

// Feedback restricts feedback to orders in the active set when one is given
// (nil keeps everything) and computes the customer experience views.
func Feedback(rows []model.Feedback, active []model.Enriched, topWords int) FeedbackInsights {
	var byOrder map[string]model.Enriched
	if active != nil {
		byOrder = make(map[string]model.Enriched, len(active))
		for _, r := range active {
			byOrder[r.ID()] = r
		}
	}
	out := FeedbackInsights{Weekly: []WeeklyRating{}, ByIssue: []IssueRating{}, TopWords: []WordCount{}, RatingDelay: []RatingDelay{}}
	weeks := map[time.Time]*avg{}
	issues := map[string]*avg{}
	issueCounts := map[string]int{}
	words := map[string]int{}
	for _, f := range rows {
		rec, known := byOrder[f.OrderID]
		if byOrder != nil && !known {
			continue
		}
		out.Responses++
		if f.Date != nil && f.Rating != nil {
			w := weekStart(*f.Date)
			if weeks[w] == nil {
				weeks[w] = &avg{}
			}
			weeks[w].add(f.Rating)
		}
		if f.IssueCategory != "" {
			if issues[f.IssueCategory] == nil {
				issues[f.IssueCategory] = &avg{}
			}
			issues[f.IssueCategory].add(f.Rating)
			issueCounts[f.IssueCategory]++
		}
		for _, w := range tokenize(f.Text) {
			words[w]++
		}
		if known && f.Rating != nil && rec.DelayDays != nil {
			out.RatingDelay = append(out.RatingDelay, RatingDelay{OrderID: f.OrderID, Rating: *f.Rating, DelayDays: *rec.DelayDays})
		}
	}

	starts := make([]time.Time, 0, len(weeks))
	for w := range weeks {
		starts = append(starts, w)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	for _, w := range starts {
		a := weeks[w]
		out.Weekly = append(out.Weekly, WeeklyRating{WeekStart: w, Responses: a.n, AvgRating: a.sum / float64(a.n)})
	}

	for _, issue := range sortedKeys(issues) {
		out.ByIssue = append(out.ByIssue, IssueRating{Issue: issue, Count: issueCounts[issue], AvgRating: issues[issue].value()})
	}
	// lowest rated issues first; unrated last
	sort.SliceStable(out.ByIssue, func(i, j int) bool {
		a, b := out.ByIssue[i].AvgRating, out.ByIssue[j].AvgRating
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return *a < *b
	})

	for w, c := range words {
		out.TopWords = append(out.TopWords, WordCount{Word: w, Count: c})
	}
	sort.Slice(out.TopWords, func(i, j int) bool {
		if out.TopWords[i].Count != out.TopWords[j].Count {
			return out.TopWords[i].Count > out.TopWords[j].Count
		}
		return out.TopWords[i].Word < out.TopWords[j].Word
	})
	if topWords > 0 && len(out.TopWords) > topWords {
		out.TopWords = out.TopWords[:topWords]
	}
	return out
}

// weekStart truncates to the Monday of the date's week, UTC.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// tokenize lowercases, drops punctuation and keeps words longer than three
// characters.
func tokenize(text string) []string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, text)
	var out []string
	for _, w := range strings.Fields(clean) {
		if len([]rune(w)) > 3 {
			out = append(out, w)
		}
	}
	return out
}
