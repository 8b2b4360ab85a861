package render

import (
	"strings"
	"testing"
	"time"

	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/i18n"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	tr, err := i18n.NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator() error = %v", err)
	}
	return NewRenderer(tr, config.ButtonsConfig{
		JoinLabel: "Join", LeaveLabel: "Leave", JoinPrefix: "join_", LeavePrefix: "leave_",
	}, time.UTC)
}

func TestEventTextParticipants(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	ev := database.Event{ID: 1, Location: "Park A", Date: "20/3/2026", TimeRange: "07:30 - 09:30", Organizer: "WWF-led"}

	empty := r.EventText(ev)
	if !strings.HasSuffix(empty, "No participants yet.") {
		t.Errorf("empty roster text = %q", empty)
	}
	for _, want := range []string{"Park A", "20/3/2026", "07:30 - 09:30", "WWF-led"} {
		if !strings.Contains(empty, want) {
			t.Errorf("text missing %q: %q", want, empty)
		}
	}

	ev.Participants = database.Roster{"A", "B"}
	full := r.EventText(ev)
	if !strings.HasSuffix(full, "1. A\n2. B") {
		t.Errorf("roster text = %q", full)
	}
	if strings.Contains(full, "No participants yet.") {
		t.Error("placeholder rendered next to participants")
	}
}

func TestEventTextEscapesHTML(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	got := r.EventText(database.Event{Location: "Lake <North>", Date: "1/4/2026", TimeRange: "07:00 - 08:00", Participants: database.Roster{"Tom & Jerry"}})
	if !strings.Contains(got, "Lake &lt;North&gt;") || !strings.Contains(got, "1. Tom &amp; Jerry") {
		t.Errorf("text not escaped: %q", got)
	}
}

func TestKeyboard(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	kb := r.Keyboard(42)
	if len(kb.InlineKeyboard) != 1 || len(kb.InlineKeyboard[0]) != 2 {
		t.Fatalf("keyboard shape = %+v", kb.InlineKeyboard)
	}
	join, leave := kb.InlineKeyboard[0][0], kb.InlineKeyboard[0][1]
	if join.Text != "Join" || join.CallbackData != "join_42" {
		t.Errorf("join button = %+v", join)
	}
	if leave.Text != "Leave" || leave.CallbackData != "leave_42" {
		t.Errorf("leave button = %+v", leave)
	}
}

func TestDigestText(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		got := r.DigestText(nil, now)
		if !strings.Contains(got, "Upcoming events · March 2026") || !strings.HasSuffix(got, "No upcoming events right now.") {
			t.Errorf("DigestText() = %q", got)
		}
	})

	t.Run("grouped and sorted", func(t *testing.T) {
		t.Parallel()
		events := []database.Event{
			{ID: 1, Location: "Late", Date: "28/3/2026", TimeRange: "07:00 - 08:00", Organizer: "WWF-led", Lifecycle: database.LifecycleUpcoming},
			{ID: 2, Location: "Early", Date: "20/3/2026", TimeRange: "07:00 - 08:00", Organizer: "WWF-led", Lifecycle: database.LifecycleUpcoming, Participants: database.Roster{"A"}},
			{ID: 3, Location: "Beach", Date: "22/3/2026", TimeRange: "06:00 - 07:00", Organizer: "Audubon", Lifecycle: database.LifecycleUpcoming},
			{ID: 4, Location: "Closed", Date: "10/3/2026", TimeRange: "06:00 - 07:00", Organizer: "Audubon", Lifecycle: database.LifecyclePast},
		}
		got := r.DigestText(events, now)

		order := []string{"<b>Audubon</b>", "Beach", "<b>WWF-led</b>", "Early (1 participant)", "Late (0 participants)"}
		pos := -1
		for _, s := range order {
			i := strings.Index(got, s)
			if i < 0 {
				t.Fatalf("digest missing %q: %q", s, got)
			}
			if i < pos {
				t.Errorf("%q out of order in %q", s, got)
			}
			pos = i
		}
		if strings.Contains(got, "Closed") {
			t.Error("past event rendered in digest")
		}
	})
}

func TestPeriodLabelUsesReferenceTimezone(t *testing.T) {
	t.Parallel()
	tr, _ := i18n.NewTranslator("en")
	r := NewRenderer(tr, config.ButtonsConfig{}, time.FixedZone("UTC+3", 3*3600))

	// 31 March 22:00 UTC is already April at UTC+3.
	got := r.PeriodLabel(time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC))
	if got != "Upcoming events · April 2026" {
		t.Errorf("PeriodLabel() = %q", got)
	}
}

func TestWelcome(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	if got := r.Welcome(""); strings.Contains(got, "Training") {
		t.Errorf("Welcome without link = %q", got)
	}
	if got := r.Welcome("https://example.org/t?a=1&b=2"); !strings.Contains(got, "https://example.org/t?a=1&amp;b=2") {
		t.Errorf("Welcome with link = %q", got)
	}
}
