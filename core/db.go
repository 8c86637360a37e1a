package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingFields whitelists the fields a query can be ordered by.
type OrderingFields map[string]bool

// Allowed drops the orderings on fields that are not whitelisted.
func (fields OrderingFields) Allowed(ordering []DBOrdering) []DBOrdering {
	res := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if fields[ord.Field] {
			res = append(res, ord)
		}
	}
	return res
}

// Parse reads `field,-other` (a leading "-" means descending) into orderings on whitelisted fields.
func (fields OrderingFields) Parse(raw string) []DBOrdering {
	var res []DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		ord := DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: !strings.HasPrefix(field, "-")}
		if fields[ord.Field] {
			res = append(res, ord)
		}
	}
	return res
}
