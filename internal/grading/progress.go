package grading

import (
	"fmt"
	"sort"

	"github.com/mind-engage/pruefungstrainer/internal/content"
	"github.com/mind-engage/pruefungstrainer/internal/exam"
)

// Progress is the completion state of a part, independent of correctness.
type Progress struct {
	Answered int  `json:"answered"`
	Total    int  `json:"total"`
	Complete bool `json:"complete"`
}

// Measure counts answered items. Matching parts with no items fall back to
// the answer key size for the total.
func Measure(p content.Part, resp exam.Responses) Progress {
	var pr Progress
	for _, it := range p.Items {
		if exam.Answered(resp[it.ID]) {
			pr.Answered++
		}
	}
	pr.Total = len(p.Items)
	if pr.Total == 0 {
		pr.Total = len(p.Answers)
	}
	pr.Complete = pr.Total > 0 && pr.Answered >= pr.Total
	return pr
}

// TopicFeedback is the check result of one Hören topic.
type TopicFeedback struct {
	Title    string `json:"title"`
	User     []int  `json:"user"`
	Correct  []int  `json:"correct"`
	Complete bool   `json:"complete"`
	Perfect  bool   `json:"perfect"`
}

// TopicSummary counts perfect topics.
type TopicSummary struct {
	Total   int             `json:"total"`
	Correct int             `json:"correct"`
	Rows    []TopicFeedback `json:"rows"`
}

// CheckTopic builds feedback for one topic. A topic is perfect when every
// statement is answered and the numbers marked true match the correct ones.
func CheckTopic(t content.Topic, index int, resp exam.Responses) TopicFeedback {
	fb := TopicFeedback{Title: t.Title, User: []int{}, Correct: []int{}}
	if fb.Title == "" {
		fb.Title = t.Tag
	}
	if fb.Title == "" {
		fb.Title = fmt.Sprintf("Thema %d", index+1)
	}
	fb.Complete = len(t.Statements) > 0
	for _, s := range t.Statements {
		v := resp[s.ID]
		if !exam.Answered(v) {
			fb.Complete = false
		}
		if b, ok := v.(bool); ok && b {
			fb.User = append(fb.User, s.Number)
		}
		if s.Correct {
			fb.Correct = append(fb.Correct, s.Number)
		}
	}
	sort.Ints(fb.User)
	sort.Ints(fb.Correct)
	fb.Perfect = fb.Complete && equalInts(fb.User, fb.Correct)
	return fb
}

func CheckTopics(p content.Part, resp exam.Responses) TopicSummary {
	sum := TopicSummary{Total: len(p.Topics), Rows: []TopicFeedback{}}
	for i, t := range p.Topics {
		fb := CheckTopic(t, i, resp)
		if fb.Perfect {
			sum.Correct++
		}
		sum.Rows = append(sum.Rows, fb)
	}
	return sum
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
