package sqlxrepos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/learnspace/core"
)

const uniqueViolation = "23505"

// where accumulates "?"-style conditions; the query is rebound for the driver when built.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE (" + strings.Join(w.conds, ") AND (") + ")"
}

// build expands slice args (IN clauses) and rebinds the query for exec.
func build(exec core.DBExecutor, query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return exec.Rebind(query), args, nil
}

// orderBy renders ordering, keeping only the columns in allowed.
func orderBy(ordering []core.DBOrdering, allowed []string, defaultOrd core.DBOrdering) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if core.StringInSlice(ord.Field, allowed) {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		list = append(list, defaultOrd.String())
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// uniqueConstraint returns the violated constraint name if err is a unique violation.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
