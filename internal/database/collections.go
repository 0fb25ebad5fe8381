package database

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ExperienceEntry is one position in a candidate's work history.
type ExperienceEntry struct {
	Position         string   `json:"position"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Location         string   `json:"location"`
	EmploymentType   string   `json:"employment_type"`
	TeamSize         string   `json:"team_size"`
	ReportingTo      string   `json:"reporting_to"`
	Responsibilities []string `json:"responsibilities"`
	Achievements     []string `json:"achievements"`
	Technologies     []string `json:"technologies"`
}

// SkillEntry is a named skill with a 1-5 proficiency rating.
type SkillEntry struct {
	Skill       string `json:"skill"`
	Proficiency int    `json:"proficiency"`
}

// QualificationEntry is one educational or professional qualification.
type QualificationEntry struct {
	Qualification string `json:"qualification"`
	Institution   string `json:"institution"`
	Year          string `json:"year"`
	Grade         string `json:"grade"`
}

// decodeList is the single place where serialized collections are read back.
// Malformed or missing JSON degrades to an empty list so one bad row never
// breaks search or listing.
func decodeList[T any](raw datatypes.JSON) []T {
	if len(raw) == 0 {
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []T{}
	}
	return out
}

func encodeList[T any](list []T) datatypes.JSON {
	if list == nil {
		list = []T{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(raw)
}

// DecodeExperience parses the experience column, tolerating malformed data.
func DecodeExperience(raw datatypes.JSON) []ExperienceEntry { return decodeList[ExperienceEntry](raw) }

// DecodeSkills parses the skills column, tolerating malformed data.
func DecodeSkills(raw datatypes.JSON) []SkillEntry { return decodeList[SkillEntry](raw) }

// DecodeQualifications parses the qualifications column, tolerating malformed data.
func DecodeQualifications(raw datatypes.JSON) []QualificationEntry {
	return decodeList[QualificationEntry](raw)
}

// DecodeAchievements parses the achievements column, tolerating malformed data.
func DecodeAchievements(raw datatypes.JSON) []string { return decodeList[string](raw) }

// EncodeExperience serializes the experience list for storage.
func EncodeExperience(list []ExperienceEntry) datatypes.JSON { return encodeList(list) }

// EncodeSkills serializes the skills list for storage.
func EncodeSkills(list []SkillEntry) datatypes.JSON { return encodeList(list) }

// EncodeQualifications serializes the qualifications list for storage.
func EncodeQualifications(list []QualificationEntry) datatypes.JSON { return encodeList(list) }

// EncodeAchievements serializes the achievements list for storage.
func EncodeAchievements(list []string) datatypes.JSON { return encodeList(list) }
