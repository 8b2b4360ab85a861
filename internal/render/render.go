// Package render produces the canonical message bodies and keyboards of
// events and digests. Output is Telegram HTML.
package render

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/eventtime"
	"github.com/edgard/surveybot/internal/i18n"
)

// Renderer is safe for concurrent use.
type Renderer struct {
	tr      *i18n.Translator
	buttons config.ButtonsConfig
	loc     *time.Location
}

func NewRenderer(tr *i18n.Translator, buttons config.ButtonsConfig, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{tr: tr, buttons: buttons, loc: loc}
}

// EventText renders the header, details block and numbered participant list.
func (r *Renderer) EventText(ev database.Event) string {
	var b strings.Builder
	b.WriteString(r.tr.T("event_header", nil))
	b.WriteString("\n\n")
	b.WriteString(r.tr.T("event_location", map[string]any{"Location": html.EscapeString(ev.Location)}))
	b.WriteString("\n")
	b.WriteString(r.tr.T("event_date", map[string]any{"Date": html.EscapeString(ev.Date)}))
	b.WriteString("\n")
	b.WriteString(r.tr.T("event_time", map[string]any{"Time": html.EscapeString(ev.TimeRange)}))
	if ev.Organizer != "" {
		b.WriteString("\n")
		b.WriteString(r.tr.T("event_organizer", map[string]any{"Organizer": html.EscapeString(ev.Organizer)}))
	}
	b.WriteString("\n\n")
	b.WriteString(r.tr.T("participants_header", nil))
	b.WriteString("\n")
	b.WriteString(r.ParticipantBlock(ev.Participants))
	return b.String()
}

// ParticipantBlock renders "1. A\n2. B", or the empty-roster placeholder.
func (r *Renderer) ParticipantBlock(roster database.Roster) string {
	if len(roster) == 0 {
		return r.tr.T("no_participants", nil)
	}
	lines := make([]string, len(roster))
	for i, name := range roster {
		lines[i] = strconv.Itoa(i+1) + ". " + html.EscapeString(name)
	}
	return strings.Join(lines, "\n")
}

// Keyboard returns the Join/Leave buttons of an event.
func (r *Renderer) Keyboard(eventID int64) *models.InlineKeyboardMarkup {
	id := strconv.FormatInt(eventID, 10)
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: r.buttons.JoinLabel, CallbackData: r.buttons.JoinPrefix + id},
			{Text: r.buttons.LeaveLabel, CallbackData: r.buttons.LeavePrefix + id},
		}},
	}
}

// PeriodLabel is the plain-text digest title for now's month, e.g.
// "Upcoming events · March 2026". Pinned messages come back from the
// platform without markup, so this is what reconciliation searches for.
func (r *Renderer) PeriodLabel(now time.Time) string {
	local := now.In(r.loc)
	period := r.tr.T("month_"+strconv.Itoa(int(local.Month())), nil) + " " + strconv.Itoa(local.Year())
	return r.tr.T("digest_title", map[string]any{"Period": period})
}

type datedEvent struct {
	ev    database.Event
	start time.Time
	ok    bool
}

// DigestTitlePrefix is the part of PeriodLabel shared by every period.
func (r *Renderer) DigestTitlePrefix() string {
	return strings.TrimSpace(r.tr.T("digest_title", map[string]any{"Period": ""}))
}

// DigestText renders the period header followed by the open events grouped
// by organizer. Groups are sorted by organizer name and each group by start
// instant; events with an unparseable date go last in their group.
func (r *Renderer) DigestText(events []database.Event, now time.Time) string {
	var b strings.Builder
	b.WriteString("🗓 <b>")
	b.WriteString(html.EscapeString(r.PeriodLabel(now)))
	b.WriteString("</b>\n\n")

	groups := make(map[string][]datedEvent)
	for _, ev := range events {
		if ev.Lifecycle != database.LifecycleUpcoming {
			continue
		}
		start, err := eventtime.StartInstant(ev.Date, ev.TimeRange, r.loc)
		organizer := ev.Organizer
		if organizer == "" {
			organizer = r.tr.T("digest_no_organizer", nil)
		}
		groups[organizer] = append(groups[organizer], datedEvent{ev: ev, start: start, ok: err == nil})
	}

	if len(groups) == 0 {
		b.WriteString(r.tr.T("digest_empty", nil))
		return b.String()
	}

	organizers := make([]string, 0, len(groups))
	for name := range groups {
		organizers = append(organizers, name)
	}
	sort.Strings(organizers)

	for i, name := range organizers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		group := groups[name]
		sort.SliceStable(group, func(a, c int) bool {
			if group[a].ok != group[c].ok {
				return group[a].ok
			}
			if !group[a].start.Equal(group[c].start) {
				return group[a].start.Before(group[c].start)
			}
			return group[a].ev.ID < group[c].ev.ID
		})

		b.WriteString("<b>")
		b.WriteString(html.EscapeString(name))
		b.WriteString("</b>")
		for _, d := range group {
			b.WriteString("\n")
			b.WriteString(r.tr.Plural("digest_event_line", len(d.ev.Participants), map[string]any{
				"Date":     html.EscapeString(d.ev.Date),
				"Time":     html.EscapeString(d.ev.TimeRange),
				"Location": html.EscapeString(d.ev.Location),
			}))
		}
	}
	return b.String()
}

// Welcome renders the /start reply.
func (r *Renderer) Welcome(trainingLink string) string {
	text := r.tr.T("welcome", nil)
	if trainingLink != "" {
		text += "\n\n" + r.tr.T("welcome_training", map[string]any{"Link": html.EscapeString(trainingLink)})
	}
	return text
}

// T exposes the catalogue for short acknowledgments.
func (r *Renderer) T(key string) string {
	return r.tr.T(key, nil)
}
