// Package setup creates the configuration entities of the engine: metrics,
// their level ladders, metric groups, achievements and prizes.
package setup

// Kind names a configuration entity kind.
type Kind string

// Entity kinds accepted by Apply.
const (
	KindMetric      Kind = "metric"
	KindMetricLevel Kind = "metric_level"
	KindGroup       Kind = "group"
	KindGroupLevel  Kind = "group_level"
	KindAchievement Kind = "achievement"
	KindPrize       Kind = "prize"
)

// Entity is implemented by MetricSpec, LevelSpec, GroupSpec, GroupLevelSpec,
// AchievementSpec and PrizeSpec only.
type Entity interface {
	Kind() Kind
	isEntity()
}

// MetricSpec describes a GamedMetric. Slug is derived from Name when empty.
type MetricSpec struct {
	Slug        string `yaml:"slug" json:"slug"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Active      *bool  `yaml:"active" json:"active"` // nil means active
}

// LevelSpec describes one level of a metric's ladder.
type LevelSpec struct {
	Metric       string   `yaml:"metric" json:"metric"`
	Level        int      `yaml:"level" json:"level"`
	Threshold    int64    `yaml:"xp_threshold" json:"xp_threshold"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Achievements []string `yaml:"achievements" json:"achievements"`
}

// GroupMember links a metric into a group. A zero weight means 1.
type GroupMember struct {
	Metric string  `yaml:"metric" json:"metric"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// GroupSpec describes a MetricLevelGroup and its weighted members.
type GroupSpec struct {
	Slug        string        `yaml:"slug" json:"slug"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Members     []GroupMember `yaml:"metrics" json:"metrics"`
}

// GroupLevelSpec describes one level of a group's ladder.
type GroupLevelSpec struct {
	Group        string   `yaml:"group" json:"group"`
	Level        int      `yaml:"level" json:"level"`
	Threshold    int64    `yaml:"xp_threshold" json:"xp_threshold"`
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description"`
	Achievements []string `yaml:"achievements" json:"achievements"`
}

// AchievementSpec describes an Achievement.
type AchievementSpec struct {
	Slug          string         `yaml:"slug" json:"slug"`
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	AwardableType string         `yaml:"awardable_type" json:"awardable_type"`
	Active        *bool          `yaml:"active" json:"active"`
	Meta          map[string]any `yaml:"meta" json:"meta"`
}

// PrizeSpec describes a Prize.
type PrizeSpec struct {
	Slug          string         `yaml:"slug" json:"slug"`
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	AwardableType string         `yaml:"awardable_type" json:"awardable_type"`
	Active        *bool          `yaml:"active" json:"active"`
	Meta          map[string]any `yaml:"meta" json:"meta"`
}

func (MetricSpec) Kind() Kind      { return KindMetric }
func (LevelSpec) Kind() Kind       { return KindMetricLevel }
func (GroupSpec) Kind() Kind       { return KindGroup }
func (GroupLevelSpec) Kind() Kind  { return KindGroupLevel }
func (AchievementSpec) Kind() Kind { return KindAchievement }
func (PrizeSpec) Kind() Kind       { return KindPrize }

func (MetricSpec) isEntity()      {}
func (LevelSpec) isEntity()       {}
func (GroupSpec) isEntity()       {}
func (GroupLevelSpec) isEntity()  {}
func (AchievementSpec) isEntity() {}
func (PrizeSpec) isEntity()       {}

func activeOrDefault(active *bool) bool {
	return active == nil || *active
}
