package records

import (
	"time"

	"talentvault/internal/database"
)

// Candidate is the domain view of a stored candidate, with collections
// deserialized. Conversions to and from the row form go through the codec in
// internal/database so malformed data degrades to empty collections in
// exactly one place.
type Candidate struct {
	ID                   uint                          `json:"id"`
	Name                 string                        `json:"name"`
	CurrentRole          string                        `json:"current_role"`
	Email                string                        `json:"email"`
	Phone                string                        `json:"phone"`
	NoticePeriod         string                        `json:"notice_period"`
	CurrentSalary        string                        `json:"current_salary"`
	Industry             string                        `json:"industry"`
	DesiredSalary        string                        `json:"desired_salary"`
	HighestQualification string                        `json:"highest_qualification"`
	SpecialSkills        string                        `json:"special_skills"`
	Experience           []database.ExperienceEntry    `json:"experience"`
	Skills               []database.SkillEntry         `json:"skills"`
	Qualifications       []database.QualificationEntry `json:"qualifications"`
	Achievements         []string                      `json:"achievements"`
	CreatedAt            time.Time                     `json:"created_at"`
	UpdatedAt            time.Time                     `json:"updated_at"`
}

func fromRow(row database.Candidate) Candidate {
	return Candidate{
		ID:                   row.ID,
		Name:                 row.Name,
		CurrentRole:          row.CurrentRole,
		Email:                row.Email,
		Phone:                row.Phone,
		NoticePeriod:         row.NoticePeriod,
		CurrentSalary:        row.CurrentSalary,
		Industry:             row.Industry,
		DesiredSalary:        row.DesiredSalary,
		HighestQualification: row.HighestQualification,
		SpecialSkills:        row.SpecialSkills,
		Experience:           database.DecodeExperience(row.Experience),
		Skills:               database.DecodeSkills(row.Skills),
		Qualifications:       database.DecodeQualifications(row.Qualifications),
		Achievements:         database.DecodeAchievements(row.Achievements),
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

func toRow(c Candidate) database.Candidate {
	return database.Candidate{
		ID:                   c.ID,
		Name:                 c.Name,
		CurrentRole:          c.CurrentRole,
		Email:                c.Email,
		Phone:                c.Phone,
		NoticePeriod:         c.NoticePeriod,
		CurrentSalary:        c.CurrentSalary,
		Industry:             c.Industry,
		DesiredSalary:        c.DesiredSalary,
		HighestQualification: c.HighestQualification,
		SpecialSkills:        c.SpecialSkills,
		Experience:           database.EncodeExperience(c.Experience),
		Skills:               database.EncodeSkills(c.Skills),
		Qualifications:       database.EncodeQualifications(c.Qualifications),
		Achievements:         database.EncodeAchievements(c.Achievements),
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}
