package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/learnspace/core"
	"github.com/trezcool/learnspace/core/assignment"
	"github.com/trezcool/learnspace/core/model3d"
	"github.com/trezcool/learnspace/core/user"
)

type (
	// DB is a process-local store for tests and database-less runs.
	DB struct {
		user       *userTable
		model      *modelTable
		assignment *assignmentTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	modelTable struct {
		sync.RWMutex
		table map[string]*model3d.Model
	}

	// assignments and submissions share a lock: submission queries join on assignments.
	assignmentTables struct {
		sync.RWMutex
		assignments map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
	}
)

func Open() *DB {
	return &DB{
		user:  &userTable{table: make(map[string]*user.User)},
		model: &modelTable{table: make(map[string]*model3d.Model)},
		assignment: &assignmentTables{
			assignments: make(map[string]*assignment.Assignment),
			submissions: make(map[string]*assignment.Submission),
		},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.model.Lock()
	db.model.table = make(map[string]*model3d.Model)
	db.model.Unlock()

	db.assignment.Lock()
	db.assignment.assignments = make(map[string]*assignment.Assignment)
	db.assignment.submissions = make(map[string]*assignment.Submission)
	db.assignment.Unlock()
}

// sortBy orders items following ordering, falling back to defaultOrd.
// getField returns a comparable value (string, time.Time, bool) for a column name, or nil if unknown.
func sortBy(n int, ordering []core.DBOrdering, defaultOrd core.DBOrdering, getField func(i int, field string) interface{}, swap func(i, j int)) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{defaultOrd}
	}
	sort.Stable(sorter{n: n, less: func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(getField(i, ord.Field), getField(j, ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}, swap: swap})
}

type sorter struct {
	n    int
	less func(i, j int) bool
	swap func(i, j int)
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
	case time.Time:
		bv, _ := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	case bool:
		bv, _ := b.(bool)
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
	}
	return 0
}
