package objective

// Category is an Eisenhower quadrant.
type Category string

const (
	UrgentImportant       Category = "urgent-important"
	ImportantNotUrgent    Category = "important-not-urgent"
	UrgentNotImportant    Category = "urgent-not-important"
	NotUrgentNotImportant Category = "not-urgent-not-important"
)

// Categories lists the quadrants in display order.
var Categories = []Category{
	UrgentImportant,
	ImportantNotUrgent,
	UrgentNotImportant,
	NotUrgentNotImportant,
}

// Valid returns true for the four known quadrants.
func (c Category) Valid() bool {
	switch c {
	case UrgentImportant, ImportantNotUrgent, UrgentNotImportant, NotUrgentNotImportant:
		return true
	}
	return false
}

// ParseCategory returns the category named by s, or false.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}

// CategoryOf returns the quadrant of o. An explicit, known Category wins;
// otherwise the quadrant follows from IsUrgent and IsImportant.
func CategoryOf(o Objective) Category {
	if o.Category.Valid() {
		return o.Category
	}
	return categoryFromFlags(o.IsUrgent, o.IsImportant)
}

func categoryFromFlags(urgent, important bool) Category {
	switch {
	case urgent && important:
		return UrgentImportant
	case important:
		return ImportantNotUrgent
	case urgent:
		return UrgentNotImportant
	default:
		return NotUrgentNotImportant
	}
}

// Group is the objectives of one quadrant.
type Group struct {
	Category   Category
	Objectives []Objective
}

// GroupByCategory partitions objectives into the four quadrants in display
// order. Every quadrant is present, possibly empty, and objectives keep
// their input order within a quadrant.
func GroupByCategory(objectives []Objective) []Group {
	index := make(map[Category]int, len(Categories))
	groups := make([]Group, len(Categories))
	for i, c := range Categories {
		index[c] = i
		groups[i] = Group{Category: c, Objectives: []Objective{}}
	}
	for _, o := range objectives {
		i := index[CategoryOf(o)]
		groups[i].Objectives = append(groups[i].Objectives, o)
	}
	return groups
}
