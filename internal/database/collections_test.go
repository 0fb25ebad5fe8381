package database

import (
	"testing"

	"gorm.io/datatypes"
)

func TestSkillsRoundTrip(t *testing.T) {
	skills := []SkillEntry{
		{Skill: "Python", Proficiency: 5},
		{Skill: "SQL", Proficiency: 4},
	}

	decoded := DecodeSkills(EncodeSkills(skills))
	if len(decoded) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(decoded))
	}
	if decoded[0].Skill != "Python" || decoded[0].Proficiency != 5 {
		t.Fatalf("unexpected first skill: %+v", decoded[0])
	}
}

func TestExperienceRoundTrip(t *testing.T) {
	entries := []ExperienceEntry{
		{
			Position:         "Data Engineer",
			Company:          "Acme",
			Duration:         "2019-2022",
			Responsibilities: []string{"pipelines"},
			Technologies:     []string{"Go", "SQLite"},
		},
	}

	decoded := DecodeExperience(EncodeExperience(entries))
	if len(decoded) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(decoded))
	}
	if decoded[0].Company != "Acme" || len(decoded[0].Technologies) != 2 {
		t.Fatalf("unexpected entry: %+v", decoded[0])
	}
}

func TestDecodeMalformedDegradesToEmpty(t *testing.T) {
	for name, raw := range map[string]datatypes.JSON{
		"empty":      datatypes.JSON(""),
		"nil":        nil,
		"not json":   datatypes.JSON("not json at all"),
		"wrong type": datatypes.JSON(`{"skill":"x"}`),
		"null":       datatypes.JSON("null"),
	} {
		if got := DecodeSkills(raw); len(got) != 0 {
			t.Errorf("%s: expected empty list, got %+v", name, got)
		}
		if got := DecodeExperience(raw); len(got) != 0 {
			t.Errorf("%s: expected empty list, got %+v", name, got)
		}
	}
}

func TestEncodeNilIsEmptyList(t *testing.T) {
	if got := string(EncodeAchievements(nil)); got != "[]" {
		t.Fatalf("expected [], got %s", got)
	}
	if got := DecodeAchievements(EncodeAchievements(nil)); len(got) != 0 {
		t.Fatalf("expected empty achievements, got %+v", got)
	}
}
