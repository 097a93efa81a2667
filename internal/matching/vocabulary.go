package matching

import (
	"fmt"

	"github.com/xaenox/ishbor-bot/internal/models"
)

// Category is a job field of the marketplace.
type Category struct {
	ID int64
	Uz string
	Ru string
}

const (
	CategoryIT int64 = iota + 1
	CategorySales
	CategoryTransport
	CategoryConstruction
	CategoryEducation
	CategoryMedicine
	CategoryFinance
	CategoryHospitality
	CategoryManufacturing
	CategoryOther
)

var Categories = []Category{
	{CategoryIT, "IT va dasturlash", "IT и программирование"},
	{CategorySales, "Savdo", "Продажи"},
	{CategoryTransport, "Transport va logistika", "Транспорт и логистика"},
	{CategoryConstruction, "Qurilish", "Строительство"},
	{CategoryEducation, "Ta'lim", "Образование"},
	{CategoryMedicine, "Tibbiyot", "Медицина"},
	{CategoryFinance, "Moliya va buxgalteriya", "Финансы и бухгалтерия"},
	{CategoryHospitality, "Xizmat ko'rsatish", "Сфера услуг"},
	{CategoryManufacturing, "Ishlab chiqarish", "Производство"},
	{CategoryOther, "Boshqa", "Другое"},
}

func (c Category) Name() models.Text {
	return models.Text{Uz: c.Uz, Ru: c.Ru}
}

func CategoryByID(id int64) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// Experience buckets offered by the wizards.
const (
	ExperienceNone    = "none"
	ExperienceUpTo3   = "1-3"
	ExperienceUpTo6   = "3-6"
	ExperienceSixPlus = "6+"
)

var ExperienceBuckets = []string{ExperienceNone, ExperienceUpTo3, ExperienceUpTo6, ExperienceSixPlus}

// ExperienceYears maps a bucket to the years it guarantees.
func ExperienceYears(bucket string) (int, bool) {
	switch bucket {
	case ExperienceNone:
		return 0, true
	case ExperienceUpTo3:
		return 1, true
	case ExperienceUpTo6:
		return 3, true
	case ExperienceSixPlus:
		return 6, true
	}
	return 0, false
}

// Employment types.
const (
	EmploymentFull       = "full_time"
	EmploymentPart       = "part_time"
	EmploymentShift      = "shift"
	EmploymentInternship = "internship"
)

var EmploymentTypes = []string{EmploymentFull, EmploymentPart, EmploymentShift, EmploymentInternship}

var experienceLabels = map[string]models.Text{
	ExperienceNone:    {Uz: "Tajribasiz", Ru: "Без опыта"},
	ExperienceUpTo3:   {Uz: "1-3 yil", Ru: "1-3 года"},
	ExperienceUpTo6:   {Uz: "3-6 yil", Ru: "3-6 лет"},
	ExperienceSixPlus: {Uz: "6 yildan ortiq", Ru: "Более 6 лет"},
}

var employmentLabels = map[string]models.Text{
	EmploymentFull:       {Uz: "To'liq stavka", Ru: "Полная занятость"},
	EmploymentPart:       {Uz: "Yarim stavka", Ru: "Частичная занятость"},
	EmploymentShift:      {Uz: "Smenali ish", Ru: "Сменный график"},
	EmploymentInternship: {Uz: "Amaliyot", Ru: "Стажировка"},
}

// ExperienceLabel names a bucket; unknown buckets come back as given.
func ExperienceLabel(bucket string) models.Text {
	if t, ok := experienceLabels[bucket]; ok {
		return t
	}
	return models.Text{Uz: bucket, Ru: bucket}
}

// ExperienceYearsLabel describes a required number of years.
func ExperienceYearsLabel(years int) models.Text {
	if years <= 0 {
		return experienceLabels[ExperienceNone]
	}
	return models.Text{
		Uz: fmt.Sprintf("%d yildan", years),
		Ru: fmt.Sprintf("от %d лет", years),
	}
}

func EmploymentLabel(kind string) models.Text {
	if t, ok := employmentLabels[kind]; ok {
		return t
	}
	return models.Text{Uz: kind, Ru: kind}
}
