package assignment

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
)

// TaskList is the ordered list of task prompts of an Assignment.
type TaskList []string

// UnmarshalJSON accepts whatever shape ParseTasks accepts, so a TaskList never fails to decode.
func (tl *TaskList) UnmarshalJSON(data []byte) error {
	*tl = ParseTasks(data)
	return nil
}

// ContentEntry is one (question, answer) pair of a Submission, parallel to the assignment's tasks.
type ContentEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ContentParse is the result of ParseContent. Valid is false when the raw content was
// not a list of entries; Entries is then empty and callers fall back to empty answers.
type ContentParse struct {
	Entries []ContentEntry
	Valid   bool
}

// Answers returns exactly n answers: parsed answers are truncated or padded with "".
func (cp ContentParse) Answers(n int) []string {
	answers := make([]string, n)
	for i := 0; i < n && i < len(cp.Entries); i++ {
		answers[i] = cp.Entries[i].Answer
	}
	return answers
}

// ParseTasks normalizes a raw tasks value into a TaskList:
//  - a string becomes a one-element list
//  - a list keeps its order; non-string items are kept as their JSON text
//  - an object yields its values, integer-like keys first in ascending order, then the
//    remaining keys in document order
// Anything else (null, numbers, invalid JSON) yields an empty list.
func ParseTasks(raw []byte) TaskList {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return TaskList{}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return TaskList{}
		}
		return TaskList{s}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return TaskList{}
		}
		tasks := make(TaskList, 0, len(items))
		for _, item := range items {
			tasks = append(tasks, rawText(item))
		}
		return tasks
	case '{':
		values, err := orderedObjectValues(raw)
		if err != nil {
			return TaskList{}
		}
		tasks := make(TaskList, 0, len(values))
		for _, v := range values {
			tasks = append(tasks, rawText(v))
		}
		return tasks
	}
	return TaskList{}
}

// ParseContent decodes submission content stored either as a JSON list of entries or as a
// JSON string holding such a list (serialized twice).
func ParseContent(raw []byte) ContentParse {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ContentParse{Entries: []ContentEntry{}}
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ContentParse{Entries: []ContentEntry{}}
		}
		raw = bytes.TrimSpace([]byte(s))
		if len(raw) == 0 || raw[0] != '[' {
			return ContentParse{Entries: []ContentEntry{}}
		}
	}
	if raw[0] != '[' {
		return ContentParse{Entries: []ContentEntry{}}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return ContentParse{Entries: []ContentEntry{}}
	}

	entries := make([]ContentEntry, 0, len(items))
	for _, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			entries = append(entries, ContentEntry{})
			continue
		}
		entries = append(entries, ContentEntry{
			Question: stringField(obj["question"]),
			Answer:   stringField(obj["answer"]),
		})
	}
	return ContentParse{Entries: entries, Valid: true}
}

// BuildContent zips tasks with answers index-wise. Missing answers are "".
func BuildContent(tasks TaskList, answers []string) []ContentEntry {
	content := make([]ContentEntry, len(tasks))
	for i, task := range tasks {
		content[i].Question = task
		if i < len(answers) {
			content[i].Answer = answers[i]
		}
	}
	return content
}

// rawText returns the string value of a JSON string, or the compact JSON text of anything else.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

type objectMember struct {
	key   string
	index int
	value json.RawMessage
}

// orderedObjectValues returns the member values of a JSON object in property order.
func orderedObjectValues(raw []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil { // {
		return nil, err
	}

	members := make([]objectMember, 0)
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		var val json.RawMessage
		if err = dec.Decode(&val); err != nil {
			return nil, err
		}
		// a repeated key keeps its first position and its last value
		if i, ok := seen[key]; ok {
			members[i].value = val
			continue
		}
		seen[key] = len(members)
		members = append(members, objectMember{key: key, index: len(members), value: val})
	}
	if _, err := dec.Token(); err != nil { // }
		return nil, err
	}

	sort.SliceStable(members, func(i, j int) bool {
		ni, iok := arrayIndex(members[i].key)
		nj, jok := arrayIndex(members[j].key)
		switch {
		case iok && jok:
			return ni < nj
		case iok != jok:
			return iok
		default:
			return members[i].index < members[j].index
		}
	})

	values := make([]json.RawMessage, 0, len(members))
	for _, m := range members {
		values = append(values, m.value)
	}
	return values, nil
}

// arrayIndex reports whether key is a canonical non-negative integer ("0", "12", not "01").
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil {
		return 0, false
	}
	return n, true
}
