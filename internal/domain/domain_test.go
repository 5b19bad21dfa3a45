package domain

import (
	"errors"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		name   string
		millis int64
		want   string
	}{
		{name: "zero", millis: 0, want: "0 seconds"},
		{name: "negative clamps", millis: -2500, want: "0 seconds"},
		{name: "rounds down below half", millis: 499, want: "0 seconds"},
		{name: "rounds half up", millis: 500, want: "1 second"},
		{name: "one minute", millis: 60_000, want: "1 minute"},
		{name: "fifteen minutes", millis: 900_000, want: "15 minutes"},
		{name: "omits zero minutes", millis: 3_605_000, want: "1 hour, 5 seconds"},
		{name: "all units", millis: 2*3_600_000 + 5*60_000 + 3_000, want: "2 hours, 5 minutes, 3 seconds"},
		{name: "no days", millis: 30 * 3_600_000, want: "30 hours"},
		{name: "rounding carries into minutes", millis: 59_600, want: "1 minute"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.millis); got != tt.want {
				t.Fatalf("FormatDuration(%d) = %q, want %q", tt.millis, got, tt.want)
			}
		})
	}
}

func TestFormatDurationMonotonicWithinUnit(t *testing.T) {
	prevSeconds := int64(-1)
	for ms := int64(0); ms < 60_000; ms += 250 {
		seconds := (ms + 500) / 1000
		if seconds < prevSeconds {
			t.Fatalf("rounded seconds decreased at %dms", ms)
		}
		prevSeconds = seconds
		got := FormatDuration(ms)
		if got == "" {
			t.Fatalf("FormatDuration(%d) returned empty string", ms)
		}
	}
	if FormatDuration(1_000) != "1 second" || FormatDuration(2_000) != "2 seconds" {
		t.Fatalf("unexpected plural handling: %q / %q", FormatDuration(1_000), FormatDuration(2_000))
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 3, 4, 9, 5, 7, 0, time.UTC).UnixMilli()
	if got := FormatTimestamp(ts, time.UTC); got != "2026-03-04 09:05:07" {
		t.Fatalf("FormatTimestamp() = %q", got)
	}
}

func TestOrNotApplicable(t *testing.T) {
	if OrNotApplicable("") != NotApplicable {
		t.Fatal("expected N/A for empty value")
	}
	if OrNotApplicable("1 minute") != "1 minute" {
		t.Fatal("expected value passthrough")
	}
}

func TestValidatePeriods(t *testing.T) {
	details := ActivityDetails{Title: "t", Executable: "x", Interactive: InteractionActive}
	cases := []struct {
		name    string
		periods []ActivityPeriod
		wantIdx int
		wantErr bool
	}{
		{name: "empty", periods: nil, wantIdx: -1, wantErr: true},
		{name: "end before start", periods: []ActivityPeriod{{Start: 10, End: 5, Details: details}}, wantIdx: 0, wantErr: true},
		{
			name: "non monotonic",
			periods: []ActivityPeriod{
				{Start: 100, End: 100, Details: details},
				{Start: 50, End: 60, Details: details},
			},
			wantIdx: 1,
			wantErr: true,
		},
		{
			name: "overlap",
			periods: []ActivityPeriod{
				{Start: 0, End: 100, Details: details},
				{Start: 99, End: 150, Details: details},
			},
			wantIdx: 1,
			wantErr: true,
		},
		{
			name: "touching periods are valid",
			periods: []ActivityPeriod{
				{Start: 0, End: 100, Details: details},
				{Start: 100, End: 150, Details: details},
			},
		},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePeriods(tt.periods)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("ValidatePeriods() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("expected *InputError, got %T", err)
			}
			if inputErr.Index != tt.wantIdx {
				t.Fatalf("index = %d, want %d", inputErr.Index, tt.wantIdx)
			}
		})
	}
}

func TestRuleMatchingIsCaseSensitiveSubstring(t *testing.T) {
	rule := Rule{OperatingSystem: OSLinux, Executables: []string{"code"}, Program: "Visual Studio Code"}
	if !rule.MatchesExecutable("vscode-helper") {
		t.Fatal("expected substring match")
	}
	if rule.MatchesExecutable("Code") {
		t.Fatal("expected case-sensitive mismatch")
	}
	if rule.IsDefault() {
		t.Fatal("rule with matchers is not a default rule")
	}
}

func TestRuleValidate(t *testing.T) {
	if err := (Rule{OperatingSystem: OSLinux, Program: "  "}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for empty program, got %v", err)
	}
	if err := (Rule{OperatingSystem: "beos", Program: "x"}).Validate(); !errors.Is(err, ErrUnknownOperatingSystem) {
		t.Fatalf("expected ErrUnknownOperatingSystem, got %v", err)
	}
	if err := (Rule{OperatingSystem: OSLinux, Program: "x", Executables: []string{""}}).Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for empty matcher, got %v", err)
	}
	if err := (Rule{OperatingSystem: OSWindows, Program: "x"}).Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestRuleNilLabelFuncs(t *testing.T) {
	rule := Rule{OperatingSystem: OSLinux, Program: "x"}
	period := ActivityPeriod{Details: ActivityDetails{Title: "title"}}
	if rule.ProjectLabel(period) != "" || rule.DetailsLabel(period) != "" {
		t.Fatal("expected empty labels for nil label funcs")
	}
}

func TestParseOperatingSystem(t *testing.T) {
	cases := map[string]OperatingSystem{
		"linux":   OSLinux,
		"windows": OSWindows,
		"win32":   OSWindows,
		" Darwin": OSDarwin,
	}
	for raw, want := range cases {
		got, err := ParseOperatingSystem(raw)
		if err != nil {
			t.Fatalf("ParseOperatingSystem(%q) error = %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseOperatingSystem(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := ParseOperatingSystem("plan9"); !errors.Is(err, ErrUnknownOperatingSystem) {
		t.Fatalf("expected ErrUnknownOperatingSystem, got %v", err)
	}
}

func TestConfigurationErrorMessage(t *testing.T) {
	err := error(&ConfigurationError{OperatingSystem: OSLinux})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatal("expected ErrConfiguration")
	}
	if err.Error() != `no default rule for operating system "linux"` {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestNewBatch(t *testing.T) {
	now := time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)
	if _, err := NewBatch(" ", "x", OSLinux, now); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	b, err := NewBatch("b1", "", OSLinux, now)
	if err != nil {
		t.Fatalf("NewBatch() error = %v", err)
	}
	if b.Name != "20260221-120000" {
		t.Fatalf("unexpected default name %q", b.Name)
	}
	if b.Finished() {
		t.Fatal("new batch should be open")
	}
	b.Finish(now.Add(time.Hour))
	if !b.Finished() {
		t.Fatal("expected finished batch")
	}
}
