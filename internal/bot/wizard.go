package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/moderation"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
)

// Keys of Session.Answers.
const (
	ansTitle      = "title"
	ansCategory   = "category"
	ansRegion     = "region"
	ansDistrict   = "district"
	ansSalary     = "salary"
	ansExperience = "experience"
	ansEmployment = "employment"
	ansSkills     = "skills"
	ansVisibility = "visibility"
	ansKind       = "kind"
)

const (
	minTitleLength = 3
	maxTitleLength = 100
	maxSkills      = 10
	maxSkillLength = 40
	maxSalary      = 1_000_000_000
)

// step is one question of a wizard. A step accepts typed text when parse
// is set and button presses with the given callback prefix when choose is
// set. Steps whose skip reports true are passed over in both directions.
type step struct {
	state  State
	answer string
	prompt func(c *convo) (string, telegram.Markup)
	parse  func(c *convo, text string) (string, error)
	prefix string
	choose func(c *convo, value string) (string, bool)
	skip   func(answers map[string]string) bool
}

// wizard walks a chat through a fixed list of steps and calls finish once
// the last one is answered.
type wizard struct {
	steps  []step
	finish func(c *convo) error
}

func (w *wizard) index(s State) int {
	for i, st := range w.steps {
		if st.state == s {
			return i
		}
	}
	return -1
}

func (w *wizard) start(c *convo) error {
	return w.enter(c, 0)
}

// enter shows step i, or the next one that is not skipped.
func (w *wizard) enter(c *convo, i int) error {
	for ; i < len(w.steps); i++ {
		st := w.steps[i]
		if st.skip == nil || !st.skip(c.sess.Answers) {
			break
		}
		delete(c.sess.Answers, st.answer)
	}
	if i >= len(w.steps) {
		return w.finish(c)
	}
	c.setState(w.steps[i].state)
	w.show(c, w.steps[i])
	return nil
}

func (w *wizard) show(c *convo, st step) {
	text, markup := st.prompt(c)
	if c.in.Kind == inputCallback {
		c.edit(text, markup)
		return
	}
	c.reply(text, markup)
}

// back returns to the previous step. Going back from the first step leaves
// the wizard.
func (w *wizard) back(c *convo, i int) error {
	c.answerCallback("")
	for i--; i >= 0; i-- {
		st := w.steps[i]
		if st.skip == nil || !st.skip(c.sess.Answers) {
			c.setState(st.state)
			w.show(c, st)
			return nil
		}
	}
	return c.cmdCancel()
}

// resume shows the current step again.
func (w *wizard) resume(c *convo) error {
	i := w.index(c.state)
	if i < 0 {
		return w.start(c)
	}
	w.show(c, w.steps[i])
	return nil
}

func (w *wizard) onText(c *convo) error {
	i := w.index(c.state)
	if i < 0 {
		return w.start(c)
	}
	st := w.steps[i]
	if st.parse == nil {
		return invalid("invalid_choice")
	}
	value, err := st.parse(c, c.in.Text)
	if err != nil {
		return err
	}
	c.sess.Answers[st.answer] = value
	return w.enter(c, i+1)
}

func (w *wizard) onCallback(c *convo) error {
	i := w.index(c.state)
	if i < 0 {
		return w.start(c)
	}
	if c.in.CallbackData == cbBack {
		return w.back(c, i)
	}
	st := w.steps[i]
	prefix, value, _ := strings.Cut(c.in.CallbackData, ":")
	if st.choose == nil || prefix != st.prefix {
		c.answerCallback(c.t("outdated"))
		return nil
	}
	stored, ok := st.choose(c, value)
	if !ok {
		return invalid("invalid_choice")
	}
	c.sess.Answers[st.answer] = stored
	c.answerCallback("")
	return w.enter(c, i+1)
}

// moderate screens free text and returns the sanitized form.
func moderate(text string) (string, error) {
	if v := moderation.CheckForAbuse(text); !v.Allowed {
		return "", rejected(string(v.Reason), v.Message)
	}
	return moderation.SanitizeInput(text), nil
}

func parseTitle(c *convo, text string) (string, error) {
	title, err := moderate(text)
	if err != nil {
		c.log.Info("title rejected", zap.Error(err))
		return "", err
	}
	if n := utf8.RuneCountInString(title); n < minTitleLength || n > maxTitleLength {
		return "", invalid("invalid_title")
	}
	return title, nil
}

// parseSalary reads amounts like "5000000", "5 000 000", "2.5 mln" or
// "3 млн сум".
func parseSalary(raw string) (int64, bool) {
	s := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	for _, currency := range []string{"so'm", "som", "sum", "сум", "uzs"} {
		s = strings.TrimSuffix(s, currency)
	}

	var amount float64
	switch {
	case strings.HasSuffix(s, "mln"), strings.HasSuffix(s, "млн"):
		s = strings.TrimSuffix(strings.TrimSuffix(s, "mln"), "млн")
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return 0, false
		}
		amount = f * 1_000_000
	default:
		s = strings.NewReplacer(",", "", ".", "").Replace(s)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		amount = float64(n)
	}
	if amount <= 0 || amount > maxSalary {
		return 0, false
	}
	return int64(amount), true
}

func parseSalaryAnswer(_ *convo, text string) (string, error) {
	n, ok := parseSalary(text)
	if !ok {
		return "", invalid("invalid_salary")
	}
	return strconv.FormatInt(n, 10), nil
}

// parseSkills splits a comma separated list, dropping blanks and
// duplicates.
func parseSkills(c *convo, text string) (string, error) {
	clean, err := moderate(text)
	if err != nil {
		c.log.Info("skills rejected", zap.Error(err))
		return "", err
	}
	seen := make(map[string]bool)
	var skills []string
	for _, part := range strings.Split(clean, ",") {
		skill := strings.TrimSpace(part)
		if skill == "" || seen[strings.ToLower(skill)] {
			continue
		}
		if utf8.RuneCountInString(skill) > maxSkillLength {
			return "", invalid("invalid_skills")
		}
		seen[strings.ToLower(skill)] = true
		skills = append(skills, skill)
	}
	if len(skills) > maxSkills {
		return "", invalid("invalid_skills")
	}
	return strings.Join(skills, ", "), nil
}

func splitSkills(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ", ")
}

func answerInt(answers map[string]string, key string) int64 {
	n, _ := strconv.ParseInt(answers[key], 10, 64)
	return n
}

func chooseCategory(allowAny bool) func(*convo, string) (string, bool) {
	return func(_ *convo, value string) (string, bool) {
		if value == choiceAny {
			return "", allowAny
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", false
		}
		_, ok := matching.CategoryByID(id)
		return value, ok
	}
}

func chooseRegion(allowAny bool) func(*convo, string) (string, bool) {
	return func(_ *convo, value string) (string, bool) {
		if value == choiceAny {
			return "", allowAny
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return "", false
		}
		_, ok := matching.RegionByID(id)
		return value, ok
	}
}

func chooseDistrict(c *convo, value string) (string, bool) {
	if value == choiceAny {
		return "", true
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return "", false
	}
	d, ok := matching.DistrictByID(id)
	return value, ok && d.RegionID == answerInt(c.sess.Answers, ansRegion)
}

func chooseExperience(allowAny bool) func(*convo, string) (string, bool) {
	return func(_ *convo, value string) (string, bool) {
		if value == choiceAny {
			return "", allowAny
		}
		_, ok := matching.ExperienceYears(value)
		return value, ok
	}
}

func chooseEmployment(allowAny bool) func(*convo, string) (string, bool) {
	return func(_ *convo, value string) (string, bool) {
		if value == choiceAny {
			return "", allowAny
		}
		for _, t := range matching.EmploymentTypes {
			if t == value {
				return value, true
			}
		}
		return "", false
	}
}

// chooseNone accepts only the "any" button: negotiable salary, no skills.
func chooseNone(_ *convo, value string) (string, bool) {
	return "", value == choiceAny
}

func noDistricts(answers map[string]string) bool {
	return len(matching.DistrictsOf(answerInt(answers, ansRegion))) == 0
}

func prompt(key string, keyboard func(lang models.Language) telegram.InlineKeyboard) func(*convo) (string, telegram.Markup) {
	return func(c *convo) (string, telegram.Markup) {
		return c.t(key), keyboard(c.lang())
	}
}

func navOnly(lang models.Language) telegram.InlineKeyboard {
	return telegram.Rows(navRow(lang))
}

func (e *Engine) newResumeWizard() *wizard {
	return &wizard{
		finish: (*convo).saveResume,
		steps: []step{
			{
				state:  StateResumeTitle,
				answer: ansTitle,
				prompt: prompt("ask_title", navOnly),
				parse:  parseTitle,
			},
			{
				state:  StateResumeCategory,
				answer: ansCategory,
				prompt: prompt("ask_category", func(l models.Language) telegram.InlineKeyboard { return categoryKeyboard(l, false) }),
				prefix: cbCategory,
				choose: chooseCategory(false),
			},
			{
				state:  StateResumeRegion,
				answer: ansRegion,
				prompt: prompt("ask_region", func(l models.Language) telegram.InlineKeyboard { return regionKeyboard(l, false) }),
				prefix: cbRegion,
				choose: chooseRegion(false),
			},
			{
				state:  StateResumeDistrict,
				answer: ansDistrict,
				prompt: promptDistrict,
				prefix: cbDistrict,
				choose: chooseDistrict,
				skip:   noDistricts,
			},
			{
				state:  StateResumeSalary,
				answer: ansSalary,
				prompt: prompt("ask_salary_resume", func(l models.Language) telegram.InlineKeyboard { return salaryKeyboard(l, "btn_negotiable") }),
				parse:  parseSalaryAnswer,
				prefix: cbSalary,
				choose: chooseNone,
			},
			{
				state:  StateResumeExperience,
				answer: ansExperience,
				prompt: prompt("ask_experience", func(l models.Language) telegram.InlineKeyboard { return experienceKeyboard(l, false) }),
				prefix: cbExperience,
				choose: chooseExperience(false),
			},
			{
				state:  StateResumeEmployment,
				answer: ansEmployment,
				prompt: prompt("ask_employment", func(l models.Language) telegram.InlineKeyboard { return employmentKeyboard(l, false) }),
				prefix: cbEmployment,
				choose: chooseEmployment(false),
			},
			{
				state:  StateResumeSkills,
				answer: ansSkills,
				prompt: prompt("ask_skills", skillsKeyboard),
				parse:  parseSkills,
				prefix: cbSkills,
				choose: chooseNone,
			},
			{
				state:  StateResumeConfirm,
				answer: ansVisibility,
				prompt: func(c *convo) (string, telegram.Markup) {
					return c.t("confirm_resume", resumeSummary(c.sess.Answers, c.lang())), confirmKeyboard(c.lang())
				},
				prefix: cbConfirm,
				choose: func(_ *convo, value string) (string, bool) {
					switch value {
					case "public", "private", "restart":
						return value, true
					}
					return "", false
				},
			},
		},
	}
}

func (e *Engine) newSearchWizard() *wizard {
	return &wizard{
		finish: (*convo).runSearch,
		steps: []step{
			{
				state:  StateSearchCategory,
				answer: ansCategory,
				prompt: prompt("ask_category", func(l models.Language) telegram.InlineKeyboard { return categoryKeyboard(l, true) }),
				prefix: cbCategory,
				choose: chooseCategory(true),
			},
			{
				state:  StateSearchRegion,
				answer: ansRegion,
				prompt: prompt("ask_region", func(l models.Language) telegram.InlineKeyboard { return regionKeyboard(l, true) }),
				prefix: cbRegion,
				choose: chooseRegion(true),
			},
			{
				state:  StateSearchDistrict,
				answer: ansDistrict,
				prompt: promptDistrict,
				prefix: cbDistrict,
				choose: chooseDistrict,
				skip:   noDistricts,
			},
			{
				state:  StateSearchSalary,
				answer: ansSalary,
				prompt: prompt("ask_salary_search", func(l models.Language) telegram.InlineKeyboard { return salaryKeyboard(l, "btn_any") }),
				parse:  parseSalaryAnswer,
				prefix: cbSalary,
				choose: chooseNone,
			},
			{
				state:  StateSearchExperience,
				answer: ansExperience,
				prompt: prompt("ask_experience", func(l models.Language) telegram.InlineKeyboard { return experienceKeyboard(l, true) }),
				prefix: cbExperience,
				choose: chooseExperience(true),
			},
			{
				state:  StateSearchEmployment,
				answer: ansEmployment,
				prompt: prompt("ask_employment", func(l models.Language) telegram.InlineKeyboard { return employmentKeyboard(l, true) }),
				prefix: cbEmployment,
				choose: chooseEmployment(true),
			},
		},
	}
}

func promptDistrict(c *convo) (string, telegram.Markup) {
	return c.t("ask_district"), districtKeyboard(c.lang(), answerInt(c.sess.Answers, ansRegion))
}

func (c *convo) cmdSearch() error {
	user, err := c.requireUser()
	if user == nil {
		return err
	}
	c.sess.ClearWizard()
	c.answerCallback("")
	return c.searchWizard.start(c)
}

func (c *convo) cmdResume() error {
	user, err := c.requireUser()
	if user == nil {
		return err
	}
	if user.Role != models.RoleSeeker {
		c.answerCallback(c.t("resume_seekers_only"))
		c.reply(c.t("resume_seekers_only"), nil)
		return nil
	}
	c.answerCallback("")
	if c.state.Kind() == kindResume {
		return c.resumeWizard.resume(c)
	}
	c.sess.ClearWizard()
	return c.resumeWizard.start(c)
}

// saveResume stores the wizard answers as the user's resume, replacing the
// one they already have.
func (c *convo) saveResume() error {
	answers := c.sess.Answers
	if answers[ansVisibility] == "restart" {
		c.sess.ClearWizard()
		return c.resumeWizard.start(c)
	}

	user, err := c.requireUser()
	if user == nil {
		return err
	}
	resume, err := c.store.GetResumeByUser(c.ctx, user.ID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		resume = &models.Resume{UserID: user.ID}
	case err != nil:
		return fmt.Errorf("load resume of user %d: %w", user.ID, err)
	}

	public := answers[ansVisibility] == "public"
	regionID := answerInt(answers, ansRegion)
	region, _ := matching.RegionByID(regionID)

	if resume.FullName == "" {
		resume.FullName = user.Name
	}
	resume.Title = answers[ansTitle]
	resume.CategoryID = answerInt(answers, ansCategory)
	resume.RegionID = regionID
	resume.DistrictID = answerInt(answers, ansDistrict)
	resume.RegionSlug = region.Slug
	resume.SalaryMin = answerInt(answers, ansSalary)
	resume.Experience = answers[ansExperience]
	resume.EmploymentType = answers[ansEmployment]
	resume.Skills = splitSkills(answers[ansSkills])
	resume.Phone = user.Phone
	resume.IsPublic = public
	resume.Status = models.StatusActive
	resume.PostToChannel = &public

	if err := c.store.SaveResume(c.ctx, resume); err != nil {
		return fmt.Errorf("save resume: %w", err)
	}
	c.log.Info("resume saved", zap.Int64("resume_id", resume.ID), zap.Bool("public", public))

	if public && c.channels != nil {
		c.channels.SyncAsync(models.EntityResume, resume.ID)
	}
	c.sess.ClearWizard()

	key := "resume_saved"
	if public {
		key = "resume_published"
	}
	c.edit(c.t(key), nil)
	return c.showMenu()
}
