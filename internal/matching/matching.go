// Package matching scores vacancies and resumes against what a user is
// looking for. Everything here is pure.
package matching

import (
	"sort"
	"strings"

	"github.com/xaenox/ishbor-bot/internal/models"
)

// MinScore is the relevance floor; weaker matches are never shown.
const MinScore = 30

const (
	weightCategory    = 30
	penaltyCategory   = -10
	weightDistrict    = 30
	weightRegion      = 20
	weightNeighbor    = 10
	penaltyFarAway    = -20
	weightSalary      = 20
	weightSalaryNear  = 10
	weightExperience  = 10
	weightEmployment  = 10
	salaryNearPercent = 80
)

// Profile is what the searching user wants.
type Profile struct {
	CategoryID     int64
	RegionID       int64
	DistrictID     int64
	SalaryMin      int64
	Experience     string
	EmploymentType string
	Title          string
	Skills         []string
}

// Candidate is the scoring projection of a vacancy or a resume.
type Candidate struct {
	ID              int64
	Kind            models.EntityType
	Title           string
	RegionID        int64
	DistrictID      int64
	CategoryID      int64
	SalaryMin       int64
	SalaryMax       int64
	ExperienceYears int
	EmploymentType  string
	RemoteEligible  bool
}

type MatchResult struct {
	Candidate   Candidate
	Score       int
	Explanation models.Text
	AIScore     *int
	AIReason    string
}

func FromJob(j *models.Job) Candidate {
	return Candidate{
		ID:              j.ID,
		Kind:            models.EntityJob,
		Title:           j.Title,
		RegionID:        j.RegionID,
		DistrictID:      j.DistrictID,
		CategoryID:      j.CategoryID,
		SalaryMin:       j.SalaryMin,
		SalaryMax:       j.SalaryMax,
		ExperienceYears: j.ExperienceYrs,
		EmploymentType:  j.EmploymentType,
		RemoteEligible:  j.Remote,
	}
}

func FromResume(r *models.Resume) Candidate {
	years, _ := ExperienceYears(r.Experience)
	return Candidate{
		ID:              r.ID,
		Kind:            models.EntityResume,
		Title:           r.Title,
		RegionID:        r.RegionID,
		DistrictID:      r.DistrictID,
		CategoryID:      r.CategoryID,
		SalaryMin:       r.SalaryMin,
		ExperienceYears: years,
		EmploymentType:  r.EmploymentType,
	}
}

var (
	fragCategory   = models.Text{Uz: "mos soha", Ru: "подходящая сфера"}
	fragDistrict   = models.Text{Uz: "sizning tumaningizda", Ru: "в вашем районе"}
	fragRegion     = models.Text{Uz: "sizning viloyatingizda", Ru: "в вашем регионе"}
	fragNeighbor   = models.Text{Uz: "qo'shni viloyatda", Ru: "в соседнем регионе"}
	fragSalary     = models.Text{Uz: "maosh mos", Ru: "зарплата подходит"}
	fragSalaryNear = models.Text{Uz: "maosh yaqin", Ru: "зарплата близка"}
	fragExperience = models.Text{Uz: "tajriba yetarli", Ru: "опыта достаточно"}
	fragEmployment = models.Text{Uz: "bandlik turi mos", Ru: "подходящий тип занятости"}
	fragGeneral    = models.Text{Uz: "umumiy moslik", Ru: "общее совпадение"}
)

// Score rates c against p on a 0..100 scale.
func Score(p Profile, c Candidate) MatchResult {
	score := 0
	var reasons []models.Text

	if p.CategoryID != 0 && c.CategoryID != 0 {
		if p.CategoryID == c.CategoryID {
			score += weightCategory
			reasons = append(reasons, fragCategory)
		} else {
			score += penaltyCategory
		}
	}

	switch {
	case p.DistrictID != 0 && p.DistrictID == c.DistrictID:
		score += weightDistrict
		reasons = append(reasons, fragDistrict)
	case p.RegionID != 0 && p.RegionID == c.RegionID:
		score += weightRegion
		reasons = append(reasons, fragRegion)
	case Adjacent(p.RegionID, c.RegionID):
		score += weightNeighbor
		reasons = append(reasons, fragNeighbor)
	case p.RegionID != 0 && c.RegionID != 0 && !c.RemoteEligible:
		score += penaltyFarAway
	}

	if pts, frag := salaryPoints(p, c); pts > 0 {
		score += pts
		reasons = append(reasons, frag)
	}

	if years, ok := ExperienceYears(p.Experience); ok && experienceFits(years, c) {
		score += weightExperience
		reasons = append(reasons, fragExperience)
	}

	if p.EmploymentType != "" && p.EmploymentType == c.EmploymentType {
		score += weightEmployment
		reasons = append(reasons, fragEmployment)
	}

	return MatchResult{
		Candidate:   c,
		Score:       clamp(score, 0, 100),
		Explanation: explain(reasons),
	}
}

// salaryPoints compares money in the direction of the search: a seeker
// wants the vacancy to pay at least their minimum, an employer wants the
// resume to ask no more than their budget.
func salaryPoints(p Profile, c Candidate) (int, models.Text) {
	if p.SalaryMin <= 0 {
		return 0, models.Text{}
	}

	if c.Kind == models.EntityResume {
		if c.SalaryMin <= 0 {
			return 0, models.Text{}
		}
		if c.SalaryMin <= p.SalaryMin {
			return weightSalary, fragSalary
		}
		if p.SalaryMin*100 >= c.SalaryMin*salaryNearPercent {
			return weightSalaryNear, fragSalaryNear
		}
		return 0, models.Text{}
	}

	top := c.SalaryMax
	if top <= 0 {
		top = c.SalaryMin
	}
	if top > 0 && top >= p.SalaryMin {
		return weightSalary, fragSalary
	}
	if c.SalaryMin > 0 && c.SalaryMin*100 >= p.SalaryMin*salaryNearPercent {
		return weightSalaryNear, fragSalaryNear
	}
	return 0, models.Text{}
}

// experienceFits: a vacancy must not require more than the seeker has; a
// resume must have at least what the employer asks for.
func experienceFits(profileYears int, c Candidate) bool {
	if c.Kind == models.EntityResume {
		return c.ExperienceYears >= profileYears
	}
	return profileYears >= c.ExperienceYears
}

func explain(reasons []models.Text) models.Text {
	if len(reasons) == 0 {
		return fragGeneral
	}
	uz := make([]string, 0, len(reasons))
	ru := make([]string, 0, len(reasons))
	for _, r := range reasons {
		uz = append(uz, r.Uz)
		ru = append(ru, r.Ru)
	}
	return models.Text{Uz: strings.Join(uz, ", "), Ru: strings.Join(ru, ", ")}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MatchAndSort scores every candidate, drops those under MinScore and
// orders the rest by score, best first, ties by id.
func MatchAndSort(p Profile, candidates []Candidate) []MatchResult {
	results := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		r := Score(p, c)
		if r.Score < MinScore {
			continue
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Candidate.ID < results[j].Candidate.ID
	})
	return results
}
