package models

// Category is the fixed set of issue categories.
type Category string

const (
	CategoryRoads          Category = "Roads & Infrastructure"
	CategoryWater          Category = "Water Supply"
	CategoryElectricity    Category = "Electricity"
	CategorySanitation     Category = "Sanitation & Waste"
	CategoryPublicSafety   Category = "Public Safety"
	CategoryStreetLighting Category = "Street Lighting"
	CategoryTransport      Category = "Public Transport"
	CategoryParks          Category = "Parks & Recreation"
	CategoryNoise          Category = "Noise Pollution"
	CategoryOther          Category = "Other"
)

// DefaultBaseHours applies to categories missing from the table.
const DefaultBaseHours = 48

// categoryBaseHours is the target hours-to-resolve for each category at medium priority.
var categoryBaseHours = map[Category]int{
	CategoryPublicSafety:   12,
	CategoryElectricity:    24,
	CategoryWater:          24,
	CategoryNoise:          36,
	CategorySanitation:     48,
	CategoryStreetLighting: 48,
	CategoryTransport:      48,
	CategoryOther:          48,
	CategoryRoads:          72,
	CategoryParks:          96,
}

func AllCategories() []Category {
	return []Category{
		CategoryRoads,
		CategoryWater,
		CategoryElectricity,
		CategorySanitation,
		CategoryPublicSafety,
		CategoryStreetLighting,
		CategoryTransport,
		CategoryParks,
		CategoryNoise,
		CategoryOther,
	}
}

func (c Category) IsValid() bool {
	_, ok := categoryBaseHours[c]
	return ok
}

func (c Category) BaseHours() int {
	if hours, ok := categoryBaseHours[c]; ok {
		return hours
	}
	return DefaultBaseHours
}

func (c Category) String() string {
	return string(c)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityOrder = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

var priorityMultipliers = map[Priority]float64{
	PriorityUrgent: 0.25,
	PriorityHigh:   0.5,
	PriorityMedium: 1,
	PriorityLow:    1.5,
}

func AllPriorities() []Priority {
	return append([]Priority(nil), priorityOrder...)
}

func (p Priority) IsValid() bool {
	return p.Rank() > 0
}

// Rank orders tiers from 1 (low) to 4 (urgent). Unknown values rank 0.
func (p Priority) Rank() int {
	for i, candidate := range priorityOrder {
		if candidate == p {
			return i + 1
		}
	}
	return 0
}

// Multiplier scales category base hours. Unknown priorities behave like medium.
func (p Priority) Multiplier() float64 {
	if m, ok := priorityMultipliers[p]; ok {
		return m
	}
	return 1
}

// Escalate moves the tier up by steps, capped at urgent.
func (p Priority) Escalate(steps int) Priority {
	return PriorityFromRank(p.Rank() + steps)
}

func (p Priority) String() string {
	return string(p)
}

// PriorityFromRank clamps rank into [low, urgent].
func PriorityFromRank(rank int) Priority {
	if rank < 1 {
		rank = 1
	}
	if rank > len(priorityOrder) {
		rank = len(priorityOrder)
	}
	return priorityOrder[rank-1]
}

// MaxPriority returns the higher tier. Invalid values never win.
func MaxPriority(a, b Priority) Priority {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusAssigned     Status = "assigned"
	StatusInProgress   Status = "in-progress"
	StatusResolved     Status = "resolved"
	StatusRejected     Status = "rejected"
	StatusClosed       Status = "closed"
)

func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusAcknowledged,
		StatusAssigned,
		StatusInProgress,
		StatusResolved,
		StatusRejected,
		StatusClosed,
	}
}

func (s Status) IsValid() bool {
	for _, candidate := range AllStatuses() {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal is true for statuses that no longer accept merges or aging.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusRejected || s == StatusClosed
}

func (s Status) String() string {
	return string(s)
}

// TerminalStatuses lists the statuses excluded from clustering and aging.
func TerminalStatuses() []Status {
	return []Status{StatusResolved, StatusRejected, StatusClosed}
}

type NotificationType string

const (
	NotificationStatusUpdate NotificationType = "status_update"
	NotificationAssignment   NotificationType = "assignment"
	NotificationMerge        NotificationType = "merge"
	NotificationInfo         NotificationType = "info"
)
