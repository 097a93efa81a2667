package bot

import (
	"strconv"

	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/telegram"
)

// Callback data prefixes.
const (
	cbLanguage   = "lang"
	cbMenu       = "menu"
	cbCancel     = "cancel"
	cbBack       = "back"
	cbCategory   = "cat"
	cbRegion     = "reg"
	cbDistrict   = "dist"
	cbSalary     = "salary"
	cbExperience = "exp"
	cbEmployment = "emp"
	cbSkills     = "skills"
	cbConfirm    = "confirm"
	cbAuth       = "auth"
	cbPage       = "page"
	cbView       = "view"
	cbApply      = "apply"
	cbLocation   = "loc"

	choiceAny = "any"
)

// Premium emoji shown as button icons on clients that support them.
const (
	iconSearch = "5231012545799666522"
	iconResume = "5373251851074415873"
)

func data(prefix string, value any) string {
	switch v := value.(type) {
	case string:
		return prefix + ":" + v
	case int64:
		return prefix + ":" + strconv.FormatInt(v, 10)
	case int:
		return prefix + ":" + strconv.Itoa(v)
	default:
		return prefix
	}
}

func languageKeyboard() telegram.InlineKeyboard {
	return telegram.Rows([]telegram.InlineButton{
		telegram.CallbackButton("🇺🇿 O'zbekcha", data(cbLanguage, string(models.LangUz))),
		telegram.CallbackButton("🇷🇺 Русский", data(cbLanguage, string(models.LangRu))),
	})
}

func mainMenu(lang models.Language, role models.Role) telegram.InlineKeyboard {
	search := telegram.CallbackButton(tr(lang, "btn_search_jobs"), data(cbMenu, "search")).WithIcon(iconSearch)
	rows := [][]telegram.InlineButton{{search}}
	if role == models.RoleEmployer {
		rows[0][0].Text = tr(lang, "btn_search_candidates")
	} else {
		rows = append(rows, []telegram.InlineButton{
			telegram.CallbackButton(tr(lang, "btn_resume"), data(cbMenu, "resume")).WithIcon(iconResume),
		})
	}
	rows = append(rows, []telegram.InlineButton{
		telegram.CallbackButton(tr(lang, "btn_language"), data(cbMenu, "lang")),
		telegram.CallbackButton(tr(lang, "btn_help"), data(cbMenu, "help")),
	})
	return telegram.Rows(rows...)
}

func navRow(lang models.Language) []telegram.InlineButton {
	return []telegram.InlineButton{
		telegram.CallbackButton(tr(lang, "btn_back"), cbBack),
		telegram.CallbackButton(tr(lang, "btn_cancel"), cbCancel),
	}
}

// grid lays buttons out n per row and appends the navigation row.
func grid(lang models.Language, perRow int, buttons []telegram.InlineButton, extra ...telegram.InlineButton) telegram.InlineKeyboard {
	var rows [][]telegram.InlineButton
	for len(buttons) > 0 {
		n := min(perRow, len(buttons))
		rows = append(rows, buttons[:n])
		buttons = buttons[n:]
	}
	if len(extra) > 0 {
		rows = append(rows, extra)
	}
	rows = append(rows, navRow(lang))
	return telegram.Rows(rows...)
}

func categoryKeyboard(lang models.Language, allowAny bool) telegram.InlineKeyboard {
	buttons := make([]telegram.InlineButton, 0, len(matching.Categories))
	for _, c := range matching.Categories {
		buttons = append(buttons, telegram.CallbackButton(c.Name().In(lang), data(cbCategory, c.ID)))
	}
	return grid(lang, 2, buttons, anyButton(lang, cbCategory, allowAny)...)
}

func regionKeyboard(lang models.Language, allowAny bool) telegram.InlineKeyboard {
	buttons := make([]telegram.InlineButton, 0, len(matching.Regions))
	for _, r := range matching.Regions {
		buttons = append(buttons, telegram.CallbackButton(r.Name().In(lang), data(cbRegion, r.ID)))
	}
	return grid(lang, 2, buttons, anyButton(lang, cbRegion, allowAny)...)
}

func districtKeyboard(lang models.Language, regionID int64) telegram.InlineKeyboard {
	districts := matching.DistrictsOf(regionID)
	buttons := make([]telegram.InlineButton, 0, len(districts))
	for _, d := range districts {
		buttons = append(buttons, telegram.CallbackButton(d.Name().In(lang), data(cbDistrict, d.ID)))
	}
	return grid(lang, 3, buttons, telegram.CallbackButton(tr(lang, "btn_any"), data(cbDistrict, choiceAny)))
}

func salaryKeyboard(lang models.Language, label string) telegram.InlineKeyboard {
	return grid(lang, 1, nil, telegram.CallbackButton(tr(lang, label), data(cbSalary, choiceAny)))
}

func experienceKeyboard(lang models.Language, allowAny bool) telegram.InlineKeyboard {
	buttons := make([]telegram.InlineButton, 0, len(matching.ExperienceBuckets))
	for _, b := range matching.ExperienceBuckets {
		buttons = append(buttons, telegram.CallbackButton(matching.ExperienceLabel(b).In(lang), data(cbExperience, b)))
	}
	return grid(lang, 2, buttons, anyButton(lang, cbExperience, allowAny)...)
}

func employmentKeyboard(lang models.Language, allowAny bool) telegram.InlineKeyboard {
	buttons := make([]telegram.InlineButton, 0, len(matching.EmploymentTypes))
	for _, t := range matching.EmploymentTypes {
		buttons = append(buttons, telegram.CallbackButton(matching.EmploymentLabel(t).In(lang), data(cbEmployment, t)))
	}
	return grid(lang, 2, buttons, anyButton(lang, cbEmployment, allowAny)...)
}

func skillsKeyboard(lang models.Language) telegram.InlineKeyboard {
	return grid(lang, 1, nil, telegram.CallbackButton(tr(lang, "btn_skip"), data(cbSkills, choiceAny)))
}

func confirmKeyboard(lang models.Language) telegram.InlineKeyboard {
	return telegram.Rows(
		[]telegram.InlineButton{telegram.CallbackButton(tr(lang, "btn_publish"), data(cbConfirm, "public"))},
		[]telegram.InlineButton{telegram.CallbackButton(tr(lang, "btn_private"), data(cbConfirm, "private"))},
		[]telegram.InlineButton{telegram.CallbackButton(tr(lang, "btn_restart"), data(cbConfirm, "restart"))},
		navRow(lang),
	)
}

func anyButton(lang models.Language, prefix string, allowAny bool) []telegram.InlineButton {
	if !allowAny {
		return nil
	}
	return []telegram.InlineButton{telegram.CallbackButton(tr(lang, "btn_any"), data(prefix, choiceAny))}
}

func otpKeyboard(lang models.Language) telegram.InlineKeyboard {
	return telegram.Rows([]telegram.InlineButton{
		telegram.CallbackButton(tr(lang, "btn_resend"), data(cbAuth, "resend")),
	})
}

func passwordKeyboard(lang models.Language) telegram.InlineKeyboard {
	return telegram.Rows([]telegram.InlineButton{
		telegram.CallbackButton(tr(lang, "btn_forgot"), data(cbAuth, "otp")),
	})
}
