package i18n

import "testing"

func TestTranslator(t *testing.T) {
	t.Parallel()

	en, err := NewTranslator("en")
	if err != nil {
		t.Fatalf("NewTranslator(en) error = %v", err)
	}
	pt, err := NewTranslator("pt-BR")
	if err != nil {
		t.Fatalf("NewTranslator(pt-BR) error = %v", err)
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "plain", got: en.T("no_participants", nil), want: "No participants yet."},
		{name: "template", got: en.T("event_date", map[string]any{"Date": "20/3/2026"}), want: "📅 Date: 20/3/2026"},
		{name: "month", got: en.T("month_3", nil), want: "March"},
		{name: "portuguese", got: pt.T("month_3", nil), want: "Março"},
		{name: "missing key", got: en.T("does_not_exist", nil), want: "does_not_exist"},
		{
			name: "plural one",
			got:  en.Plural("digest_event_line", 1, map[string]any{"Date": "1/4/2026", "Time": "07:00 - 08:00", "Location": "Lake"}),
			want: "• 1/4/2026, 07:00 - 08:00 · Lake (1 participant)",
		},
		{
			name: "plural other",
			got:  en.Plural("digest_event_line", 3, map[string]any{"Date": "1/4/2026", "Time": "07:00 - 08:00", "Location": "Lake"}),
			want: "• 1/4/2026, 07:00 - 08:00 · Lake (3 participants)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestNewTranslatorRejectsBadLocale(t *testing.T) {
	t.Parallel()

	if _, err := NewTranslator("not a locale!"); err == nil {
		t.Error("NewTranslator() error = nil, want error")
	}
}

func TestUnknownLocaleFallsBackToEnglish(t *testing.T) {
	t.Parallel()

	tr, err := NewTranslator("de")
	if err != nil {
		t.Fatalf("NewTranslator(de) error = %v", err)
	}
	if got := tr.T("ack_joined", nil); got != "You have joined the event." {
		t.Errorf("T() = %q", got)
	}
}
