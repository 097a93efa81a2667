package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/ishbor-bot/internal/channel"
	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/telegram"
)

const (
	buttonTitleLength  = 40
	cardDescriptionLen = 600
)

func shorten(s string, limit int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit-1])) + "…"
}

func placeName(regionID, districtID int64, lang models.Language) string {
	region, ok := matching.RegionByID(regionID)
	if !ok {
		return tr(lang, "label_not_set")
	}
	name := region.Name().In(lang)
	if d, ok := matching.DistrictByID(districtID); ok && d.RegionID == regionID {
		name += ", " + d.Name().In(lang)
	}
	return name
}

func categoryName(id int64, lang models.Language) string {
	if c, ok := matching.CategoryByID(id); ok {
		return c.Name().In(lang)
	}
	return tr(lang, "label_not_set")
}

// matchLine shows the deterministic score and, when present, the ranker's.
func matchLine(ref models.ResultRef, lang models.Language) string {
	line := fmt.Sprintf("🎯 %s: <b>%d%%</b>", tr(lang, "match"), ref.Score)
	if ref.AIScore != nil {
		line += fmt.Sprintf(" · AI %d%%", *ref.AIScore)
	}
	if ref.AIReason != "" {
		line += "\n<i>" + telegram.EscapeHTML(ref.AIReason) + "</i>"
	}
	return line
}

func labeled(b *strings.Builder, lang models.Language, icon, key, value string) {
	fmt.Fprintf(b, "\n%s %s: %s", icon, tr(lang, key), telegram.EscapeHTML(value))
}

func formatJobCard(j *models.Job, ref models.ResultRef, n int, lang models.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d. %s</b>", n, telegram.EscapeHTML(j.Title))
	if j.Company != "" {
		b.WriteString(" · " + telegram.EscapeHTML(j.Company))
	}
	fmt.Fprintf(&b, "\n💰 %s · 📍 %s",
		telegram.EscapeHTML(channel.SalaryText(j.SalaryMin, j.SalaryMax).In(lang)),
		telegram.EscapeHTML(placeName(j.RegionID, j.DistrictID, lang)))
	b.WriteString("\n" + matchLine(ref, lang))
	return b.String()
}

func formatResumeCard(r *models.Resume, ref models.ResultRef, n int, lang models.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%d. %s</b>", n, telegram.EscapeHTML(r.Title))
	fmt.Fprintf(&b, "\n💰 %s · 📍 %s",
		telegram.EscapeHTML(channel.SalaryText(r.SalaryMin, 0).In(lang)),
		telegram.EscapeHTML(placeName(r.RegionID, r.DistrictID, lang)))
	if r.Experience != "" {
		b.WriteString(" · " + telegram.EscapeHTML(matching.ExperienceLabel(r.Experience).In(lang)))
	}
	b.WriteString("\n" + matchLine(ref, lang))
	return b.String()
}

func formatFullJobCard(j *models.Job, ref models.ResultRef, lang models.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "💼 <b>%s</b>", telegram.EscapeHTML(j.Title))
	if j.Company != "" {
		fmt.Fprintf(&b, "\n🏢 %s", telegram.EscapeHTML(j.Company))
	}
	b.WriteString("\n")
	labeled(&b, lang, "💰", "label_salary", channel.SalaryText(j.SalaryMin, j.SalaryMax).In(lang))
	labeled(&b, lang, "📍", "label_region", placeName(j.RegionID, j.DistrictID, lang))
	if j.Address != "" {
		fmt.Fprintf(&b, "\n🏠 %s", telegram.EscapeHTML(j.Address))
	}
	labeled(&b, lang, "🗂", "label_category", categoryName(j.CategoryID, lang))
	labeled(&b, lang, "📈", "label_experience", matching.ExperienceYearsLabel(j.ExperienceYrs).In(lang))
	if j.EmploymentType != "" {
		labeled(&b, lang, "🕒", "label_employment", matching.EmploymentLabel(j.EmploymentType).In(lang))
	}
	if j.Remote {
		b.WriteString("\n🌐 " + tr(lang, "label_remote"))
	}
	if d := strings.TrimSpace(j.Description); d != "" {
		b.WriteString("\n\n" + telegram.EscapeHTML(shorten(d, cardDescriptionLen)))
	}
	bullets(&b, lang, "label_requirements", j.Requirements)
	bullets(&b, lang, "label_benefits", j.Benefits)
	if j.ContactPhone != "" || j.ContactName != "" {
		fmt.Fprintf(&b, "\n\n📞 <b>%s:</b> %s <code>%s</code>", tr(lang, "label_contact"),
			telegram.EscapeHTML(j.ContactName), telegram.EscapeHTML(j.ContactPhone))
	}
	b.WriteString("\n\n" + matchLine(ref, lang))
	return b.String()
}

func formatFullResumeCard(r *models.Resume, ref models.ResultRef, lang models.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "👤 <b>%s</b>", telegram.EscapeHTML(r.Title))
	if r.FullName != "" {
		fmt.Fprintf(&b, "\n%s", telegram.EscapeHTML(r.FullName))
	}
	b.WriteString("\n")
	labeled(&b, lang, "💰", "label_salary", channel.SalaryText(r.SalaryMin, 0).In(lang))
	labeled(&b, lang, "📍", "label_region", placeName(r.RegionID, r.DistrictID, lang))
	labeled(&b, lang, "🗂", "label_category", categoryName(r.CategoryID, lang))
	if r.Experience != "" {
		labeled(&b, lang, "📈", "label_experience", matching.ExperienceLabel(r.Experience).In(lang))
	}
	if r.EmploymentType != "" {
		labeled(&b, lang, "🕒", "label_employment", matching.EmploymentLabel(r.EmploymentType).In(lang))
	}
	if a := strings.TrimSpace(r.About); a != "" {
		b.WriteString("\n\n" + telegram.EscapeHTML(shorten(a, cardDescriptionLen)))
	}
	bullets(&b, lang, "label_skills", r.Skills)
	if r.Phone != "" {
		fmt.Fprintf(&b, "\n\n📞 <b>%s:</b> <code>%s</code>", tr(lang, "label_contact"), telegram.EscapeHTML(r.Phone))
	}
	b.WriteString("\n\n" + matchLine(ref, lang))
	return b.String()
}

func bullets(b *strings.Builder, lang models.Language, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n<b>%s:</b>", tr(lang, key))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			b.WriteString("\n• " + telegram.EscapeHTML(item))
		}
	}
}

// resumeSummary previews the wizard answers before they are saved.
func resumeSummary(answers map[string]string, lang models.Language) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s:</b> %s", tr(lang, "label_title"), telegram.EscapeHTML(answers[ansTitle]))
	labeled(&b, lang, "🗂", "label_category", categoryName(answerInt(answers, ansCategory), lang))
	labeled(&b, lang, "📍", "label_region", placeName(answerInt(answers, ansRegion), answerInt(answers, ansDistrict), lang))
	labeled(&b, lang, "💰", "label_salary", channel.SalaryText(answerInt(answers, ansSalary), 0).In(lang))
	labeled(&b, lang, "📈", "label_experience", matching.ExperienceLabel(answers[ansExperience]).In(lang))
	labeled(&b, lang, "🕒", "label_employment", matching.EmploymentLabel(answers[ansEmployment]).In(lang))
	skills := answers[ansSkills]
	if skills == "" {
		skills = tr(lang, "label_not_set")
	}
	labeled(&b, lang, "🛠", "label_skills", skills)
	return b.String()
}
