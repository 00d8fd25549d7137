package grade

// Grade is the coarse user tier derived from how many badges a user has earned.
type Grade string

const (
	GradeBronze   Grade = "bronze"
	GradeSilver   Grade = "silver"
	GradeGold     Grade = "gold"
	GradePlatinum Grade = "platinum"
)

// ForBadgeCount maps an earned-badge count to a grade tier.
func ForBadgeCount(badgeCount int) Grade {
	switch {
	case badgeCount >= 40:
		return GradePlatinum
	case badgeCount >= 20:
		return GradeGold
	case badgeCount >= 10:
		return GradeSilver
	default:
		return GradeBronze
	}
}

// Valid reports whether g is one of the known tiers.
func Valid(g Grade) bool {
	switch g {
	case GradeBronze, GradeSilver, GradeGold, GradePlatinum:
		return true
	}
	return false
}
