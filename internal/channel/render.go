package channel

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/telegram"
)

const (
	maxListItems      = 5
	maxDescription    = 700
	maxListItemLength = 120
)

// Premium emoji used in channel posts. Clients that cannot render them
// get the fallback glyph.
const (
	emojiBriefcase = "5379748062124056162"
	emojiMoney     = "5375296873982604963"
	emojiPin       = "5391032818111363540"
	emojiPhone     = "5377316857231450742"
)

// Footer is the shared tail of every post.
type Footer struct {
	Channel string
	Promo   string
	SiteURL string
}

func (f Footer) render(b *strings.Builder, link string) {
	b.WriteString("\n")
	if link != "" {
		fmt.Fprintf(b, "\n🔗 <a href=\"%s\">Batafsil / Подробнее</a>", telegram.EscapeHTML(link))
	}
	if f.Channel != "" {
		fmt.Fprintf(b, "\n📢 %s", telegram.EscapeHTML(f.Channel))
	}
	if f.Promo != "" {
		fmt.Fprintf(b, "\n<i>%s</i>", telegram.EscapeHTML(f.Promo))
	}
}

func (f Footer) link(kind string, id int64) string {
	if f.SiteURL == "" {
		return ""
	}
	return strings.TrimRight(f.SiteURL, "/") + "/" + kind + "/" + strconv.FormatInt(id, 10)
}

// RenderJob builds the canonical channel post of a vacancy.
func RenderJob(job *models.Job, footer Footer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s <b>%s</b>", telegram.CustomEmoji(emojiBriefcase, "💼"), telegram.EscapeHTML(job.Title))
	if job.Company != "" {
		fmt.Fprintf(&b, "\n🏢 %s", telegram.EscapeHTML(job.Company))
	}
	b.WriteString("\n")

	line(&b, telegram.CustomEmoji(emojiMoney, "💰"), labelSalary, SalaryText(job.SalaryMin, job.SalaryMax))
	line(&b, telegram.CustomEmoji(emojiPin, "📍"), labelRegion, placeText(job.RegionID, job.RegionSlug, job.Address))
	if job.EmploymentType != "" {
		line(&b, "🕒", labelEmployment, matching.EmploymentLabel(job.EmploymentType))
	}
	line(&b, "🎓", labelExperience, matching.ExperienceYearsLabel(job.ExperienceYrs))
	if job.Remote {
		fmt.Fprintf(&b, "\n🌐 %s", bilingual(labelRemote))
	}

	if desc := strings.TrimSpace(job.Description); desc != "" {
		fmt.Fprintf(&b, "\n\n%s", telegram.EscapeHTML(truncate(desc, maxDescription)))
	}

	list(&b, "✅", labelRequirements, job.Requirements)
	list(&b, "🎁", labelBenefits, job.Benefits)

	if link := MapLink(job.Latitude, job.Longitude); link != "" {
		fmt.Fprintf(&b, "\n\n🗺 <a href=\"%s\">%s</a>", link, bilingual(labelMap))
	}

	contact(&b, job.ContactName, job.ContactPhone)
	footer.render(&b, footer.link("jobs", job.ID))
	return b.String()
}

// RenderResume builds the canonical channel post of a resume.
func RenderResume(r *models.Resume, footer Footer) string {
	var b strings.Builder

	fmt.Fprintf(&b, "👤 <b>%s</b>", telegram.EscapeHTML(r.Title))
	if r.FullName != "" {
		fmt.Fprintf(&b, "\n%s", telegram.EscapeHTML(r.FullName))
	}
	b.WriteString("\n")

	if c, ok := matching.CategoryByID(r.CategoryID); ok {
		line(&b, "🗂", labelCategory, c.Name())
	}
	line(&b, telegram.CustomEmoji(emojiMoney, "💰"), labelExpectedSalary, SalaryText(r.SalaryMin, 0))
	line(&b, telegram.CustomEmoji(emojiPin, "📍"), labelRegion, placeText(r.RegionID, r.RegionSlug, ""))
	if r.EmploymentType != "" {
		line(&b, "🕒", labelEmployment, matching.EmploymentLabel(r.EmploymentType))
	}
	if r.Experience != "" {
		line(&b, "🎓", labelExperience, matching.ExperienceLabel(r.Experience))
	}

	if about := strings.TrimSpace(r.About); about != "" {
		fmt.Fprintf(&b, "\n\n%s", telegram.EscapeHTML(truncate(about, maxDescription)))
	}
	list(&b, "🛠", labelSkills, r.Skills)

	contact(&b, r.FullName, r.Phone)
	footer.render(&b, footer.link("resumes", r.ID))
	return b.String()
}

// MapLink points at the coordinates, or is empty when there are none.
func MapLink(lat, lon float64) string {
	if lat == 0 && lon == 0 {
		return ""
	}
	return fmt.Sprintf("https://maps.google.com/?q=%.6f,%.6f", lat, lon)
}

// SalaryText describes a salary range in both languages.
func SalaryText(min, max int64) models.Text {
	switch {
	case min <= 0 && max <= 0:
		return models.Text{Uz: "Kelishiladi", Ru: "Договорная"}
	case max <= 0 || max == min:
		return models.Text{
			Uz: FormatMoney(min) + " so'mdan",
			Ru: "от " + FormatMoney(min) + " сум",
		}
	case min <= 0:
		return models.Text{
			Uz: FormatMoney(max) + " so'mgacha",
			Ru: "до " + FormatMoney(max) + " сум",
		}
	default:
		return models.Text{
			Uz: FormatMoney(min) + " – " + FormatMoney(max) + " so'm",
			Ru: FormatMoney(min) + " – " + FormatMoney(max) + " сум",
		}
	}
}

// FormatMoney groups digits by thousands: 3500000 -> "3 500 000".
func FormatMoney(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func placeText(regionID int64, slug, address string) models.Text {
	region, ok := matching.RegionByID(regionID)
	if !ok {
		region, ok = matching.RegionBySlug(slug)
	}
	var t models.Text
	if ok {
		t = region.Name()
	}
	if address = strings.TrimSpace(address); address != "" {
		if t.Uz == "" {
			return models.Text{Uz: address, Ru: address}
		}
		t.Uz += ", " + address
		t.Ru += ", " + address
	}
	if t.Uz == "" {
		return models.Text{Uz: "Ko'rsatilmagan", Ru: "Не указан"}
	}
	return t
}

func line(b *strings.Builder, icon string, label, value models.Text) {
	fmt.Fprintf(b, "\n%s %s: %s", icon, bilingual(label), telegram.EscapeHTML(joinText(value)))
}

func list(b *strings.Builder, icon string, label models.Text, items []string) {
	var kept []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
		if len(kept) == maxListItems {
			break
		}
	}
	if len(kept) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s <b>%s:</b>", icon, bilingual(label))
	for _, item := range kept {
		fmt.Fprintf(b, "\n• %s", telegram.EscapeHTML(truncate(item, maxListItemLength)))
	}
}

func contact(b *strings.Builder, name, phone string) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" && phone == "" {
		return
	}
	fmt.Fprintf(b, "\n\n%s <b>%s:</b>", telegram.CustomEmoji(emojiPhone, "📞"), bilingual(labelContact))
	if name != "" {
		fmt.Fprintf(b, "\n%s", telegram.EscapeHTML(name))
	}
	if phone != "" {
		fmt.Fprintf(b, "\n<code>%s</code>", telegram.EscapeHTML(phone))
	}
}

// bilingual renders a label as "uz / ru", escaped.
func bilingual(t models.Text) string {
	return telegram.EscapeHTML(joinText(t))
}

func joinText(t models.Text) string {
	if t.Ru == "" || t.Ru == t.Uz {
		return t.Uz
	}
	return t.Uz + " / " + t.Ru
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:limit-1])) + "…"
}

var (
	labelSalary         = models.Text{Uz: "Maosh", Ru: "Зарплата"}
	labelExpectedSalary = models.Text{Uz: "Kutilayotgan maosh", Ru: "Ожидаемая зарплата"}
	labelRegion         = models.Text{Uz: "Hudud", Ru: "Регион"}
	labelCategory       = models.Text{Uz: "Soha", Ru: "Сфера"}
	labelEmployment     = models.Text{Uz: "Bandlik", Ru: "Занятость"}
	labelExperience     = models.Text{Uz: "Tajriba", Ru: "Опыт"}
	labelRemote         = models.Text{Uz: "Masofaviy ish mumkin", Ru: "Возможна удалённая работа"}
	labelRequirements   = models.Text{Uz: "Talablar", Ru: "Требования"}
	labelBenefits       = models.Text{Uz: "Qulayliklar", Ru: "Условия"}
	labelSkills         = models.Text{Uz: "Ko'nikmalar", Ru: "Навыки"}
	labelMap            = models.Text{Uz: "Xaritada ko'rish", Ru: "Открыть на карте"}
	labelContact        = models.Text{Uz: "Aloqa", Ru: "Контакты"}
)
