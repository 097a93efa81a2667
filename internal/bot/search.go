package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xaenox/ishbor-bot/internal/channel"
	"github.com/xaenox/ishbor-bot/internal/matching"
	"github.com/xaenox/ishbor-bot/internal/models"
	"github.com/xaenox/ishbor-bot/internal/ranker"
	"github.com/xaenox/ishbor-bot/internal/storage"
	"github.com/xaenox/ishbor-bot/internal/telegram"
	"go.uber.org/zap"
)

// profileFromAnswers builds what the user is looking for from the search
// wizard. Unanswered questions stay zero and match anything.
func profileFromAnswers(answers map[string]string) matching.Profile {
	return matching.Profile{
		CategoryID:     answerInt(answers, ansCategory),
		RegionID:       answerInt(answers, ansRegion),
		DistrictID:     answerInt(answers, ansDistrict),
		SalaryMin:      answerInt(answers, ansSalary),
		Experience:     answers[ansExperience],
		EmploymentType: answers[ansEmployment],
	}
}

// runSearch scores the catalog against the wizard answers, asks the ranker
// for a second opinion and opens the first page of results.
func (c *convo) runSearch() error {
	user, err := c.requireUser()
	if user == nil {
		return err
	}
	profile := profileFromAnswers(c.sess.Answers)

	var candidates []matching.Candidate
	kind := models.EntityJob
	if user.Role == models.RoleEmployer {
		kind = models.EntityResume
		resumes, err := c.store.ListPublicResumes(c.ctx, storage.CatalogFilter{})
		if err != nil {
			return fmt.Errorf("list resumes: %w", err)
		}
		for _, r := range resumes {
			candidates = append(candidates, matching.FromResume(r))
		}
	} else {
		if own, err := c.store.GetResumeByUser(c.ctx, user.ID); err == nil {
			profile.Title = own.Title
			profile.Skills = own.Skills
		}
		jobs, err := c.store.ListActiveJobs(c.ctx, storage.CatalogFilter{})
		if err != nil {
			return fmt.Errorf("list jobs: %w", err)
		}
		for _, j := range jobs {
			candidates = append(candidates, matching.FromJob(j))
		}
	}

	results := matching.MatchAndSort(profile, candidates)
	c.log.Info("search finished",
		zap.String("kind", string(kind)), zap.Int("candidates", len(candidates)), zap.Int("matches", len(results)))
	if len(results) == 0 {
		c.sess.ClearWizard()
		c.setState(StateIdle)
		c.edit(c.t("no_results"), mainMenu(c.lang(), user.Role))
		return nil
	}

	results = ranker.Merge(results, c.ranker.RerankForProfile(c.ctx, profile, results, c.lang()))

	refs := make([]models.ResultRef, 0, len(results))
	for _, r := range results {
		refs = append(refs, models.ResultRef{
			ID:       r.Candidate.ID,
			Score:    r.Score,
			AIScore:  r.AIScore,
			AIReason: r.AIReason,
		})
	}
	c.sess.Answers[ansKind] = string(kind)
	c.sess.Results = refs
	c.sess.Page = 0
	c.setState(StateBrowsingResults)
	return c.showPage()
}

func (c *convo) resultKind() models.EntityType {
	if c.sess.Answers[ansKind] == string(models.EntityResume) {
		return models.EntityResume
	}
	return models.EntityJob
}

func (c *convo) pageCount() int {
	return (len(c.sess.Results) + c.cfg.PageSize - 1) / c.cfg.PageSize
}

// showPage renders the current page of remembered results. Listings that
// disappeared since the search are left out.
func (c *convo) showPage() error {
	pages := c.pageCount()
	if pages == 0 {
		c.setState(StateIdle)
		return c.showMenu()
	}
	c.sess.Page = max(0, min(c.sess.Page, pages-1))
	start := c.sess.Page * c.cfg.PageSize
	end := min(start+c.cfg.PageSize, len(c.sess.Results))

	var b strings.Builder
	b.WriteString(c.t("results_header", len(c.sess.Results), c.sess.Page+1, pages))
	var buttons []telegram.InlineButton
	for i, ref := range c.sess.Results[start:end] {
		n := start + i + 1
		card, title, err := c.card(ref, n)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		b.WriteString("\n\n")
		b.WriteString(card)
		buttons = append(buttons, telegram.CallbackButton(strconv.Itoa(n)+". "+title, data(cbView, ref.ID)))
	}

	rows := make([][]telegram.InlineButton, 0, len(buttons)+2)
	for _, btn := range buttons {
		rows = append(rows, []telegram.InlineButton{btn})
	}
	var nav []telegram.InlineButton
	if c.sess.Page > 0 {
		nav = append(nav, telegram.CallbackButton(c.t("btn_prev"), data(cbPage, "prev")))
	}
	if c.sess.Page < pages-1 {
		nav = append(nav, telegram.CallbackButton(c.t("btn_more"), data(cbPage, "next")))
	}
	rows = append(rows, nav, []telegram.InlineButton{telegram.CallbackButton(c.t("btn_cancel"), cbCancel)})

	c.answerCallback("")
	if c.in.Kind == inputCallback {
		c.edit(b.String(), telegram.Rows(rows...))
	} else {
		c.reply(b.String(), telegram.Rows(rows...))
	}
	return nil
}

func (c *convo) card(ref models.ResultRef, n int) (string, string, error) {
	if c.resultKind() == models.EntityResume {
		r, err := c.store.GetResume(c.ctx, ref.ID)
		if err != nil {
			return "", "", err
		}
		return formatResumeCard(r, ref, n, c.lang()), shorten(r.Title, buttonTitleLength), nil
	}
	j, err := c.store.GetJob(c.ctx, ref.ID)
	if err != nil {
		return "", "", err
	}
	return formatJobCard(j, ref, n, c.lang()), shorten(j.Title, buttonTitleLength), nil
}

func (c *convo) onBrowse() error {
	prefix, value, _ := strings.Cut(c.in.CallbackData, ":")
	switch prefix {
	case cbPage:
		switch value {
		case "next":
			c.sess.Page++
		case "prev":
			c.sess.Page--
		case "list":
		default:
			return invalid("invalid_choice")
		}
		return c.showPage()
	case cbView, cbApply, cbLocation:
		ref, ok := c.lookupResult(value)
		if !ok {
			c.answerCallback(c.t("outdated"))
			return nil
		}
		switch prefix {
		case cbView:
			return c.showDetails(ref)
		case cbApply:
			return c.apply(ref)
		default:
			return c.sendLocation(ref)
		}
	}
	c.answerCallback(c.t("outdated"))
	return nil
}

func (c *convo) lookupResult(value string) (models.ResultRef, bool) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return models.ResultRef{}, false
	}
	for _, ref := range c.sess.Results {
		if ref.ID == id {
			return ref, true
		}
	}
	return models.ResultRef{}, false
}

func (c *convo) showDetails(ref models.ResultRef) error {
	back := []telegram.InlineButton{telegram.CallbackButton(c.t("btn_list"), data(cbPage, "list"))}

	if c.resultKind() == models.EntityResume {
		r, err := c.store.GetResume(c.ctx, ref.ID)
		if errors.Is(err, storage.ErrNotFound) {
			c.answerCallback(c.t("not_found"))
			return nil
		}
		if err != nil {
			return fmt.Errorf("load resume %d: %w", ref.ID, err)
		}
		c.answerCallback("")
		c.edit(formatFullResumeCard(r, ref, c.lang()), telegram.Rows(c.siteRow("resumes", r.ID), back))
		return nil
	}

	j, err := c.store.GetJob(c.ctx, ref.ID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !j.IsActive) {
		c.answerCallback(c.t("not_found"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %d: %w", ref.ID, err)
	}
	actions := []telegram.InlineButton{telegram.CallbackButton(c.t("btn_apply"), data(cbApply, j.ID))}
	if channel.MapLink(j.Latitude, j.Longitude) != "" {
		actions = append(actions, telegram.CallbackButton(c.t("btn_location"), data(cbLocation, j.ID)))
	}
	c.answerCallback("")
	c.edit(formatFullJobCard(j, ref, c.lang()), telegram.Rows(actions, c.siteRow("jobs", j.ID), back))
	return nil
}

func (c *convo) siteRow(kind string, id int64) []telegram.InlineButton {
	if c.cfg.SiteURL == "" {
		return nil
	}
	link := strings.TrimRight(c.cfg.SiteURL, "/") + "/" + kind + "/" + strconv.FormatInt(id, 10)
	return []telegram.InlineButton{telegram.URLButton(c.t("btn_site"), link)}
}

func (c *convo) apply(ref models.ResultRef) error {
	if c.resultKind() != models.EntityJob {
		c.answerCallback(c.t("outdated"))
		return nil
	}
	user, err := c.requireUser()
	if user == nil {
		return err
	}
	if user.Role != models.RoleSeeker {
		c.answerCallback(c.t("apply_seekers_only"))
		return nil
	}
	job, err := c.store.GetJob(c.ctx, ref.ID)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !job.IsActive) {
		c.answerCallback(c.t("not_found"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %d: %w", ref.ID, err)
	}

	app := &models.Application{
		UserID:    user.ID,
		JobID:     job.ID,
		Source:    "telegram",
		CreatedAt: c.now(),
	}
	if r, err := c.store.GetResumeByUser(c.ctx, user.ID); err == nil {
		app.ResumeID = r.ID
	}
	if err := c.store.SaveApplication(c.ctx, app); err != nil {
		return fmt.Errorf("save application: %w", err)
	}
	c.log.Info("application sent", zap.Int64("job_id", job.ID), zap.Int64("user_id", user.ID))
	c.answerCallback(c.t("applied"))
	c.reply(c.t("applied")+" <b>"+telegram.EscapeHTML(job.Title)+"</b>", nil)
	return nil
}

func (c *convo) sendLocation(ref models.ResultRef) error {
	job, err := c.store.GetJob(c.ctx, ref.ID)
	if errors.Is(err, storage.ErrNotFound) {
		c.answerCallback(c.t("not_found"))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %d: %w", ref.ID, err)
	}
	if channel.MapLink(job.Latitude, job.Longitude) == "" {
		c.answerCallback(c.t("no_location"))
		return nil
	}
	c.answerCallback("")
	if _, err := c.tg.SendLocation(c.ctx, telegram.ChatID(c.in.ChatID), job.Latitude, job.Longitude); err != nil {
		c.logDeliveryError("send location failed", err)
	}
	return nil
}
