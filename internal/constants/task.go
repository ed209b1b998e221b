package constants

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusSkipped    TaskStatus = "skipped"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

type TaskPriority string

const (
	// PriorityHigh maps to the single priority card; at most one per user and day.
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities for day listings: high first, then medium, then low.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

type TaskCategory string

const (
	CategoryWork     TaskCategory = "WORK"
	CategoryPersonal TaskCategory = "PERSONAL"
	CategoryHealth   TaskCategory = "HEALTH"
	CategoryLearning TaskCategory = "LEARNING"
	CategoryOther    TaskCategory = "OTHER"
)

func (c TaskCategory) Valid() bool {
	switch c {
	case CategoryWork, CategoryPersonal, CategoryHealth, CategoryLearning, CategoryOther:
		return true
	}
	return false
}

type TaskIconType string

const (
	IconPages    TaskIconType = "pages"
	IconPlant    TaskIconType = "plant"
	IconJournal  TaskIconType = "journal"
	IconExercise TaskIconType = "exercise"
	IconCode     TaskIconType = "code"
	IconDefault  TaskIconType = "default"
)

func (i TaskIconType) Valid() bool {
	switch i {
	case IconPages, IconPlant, IconJournal, IconExercise, IconCode, IconDefault:
		return true
	}
	return false
}
