package personality

import (
	"testing"
	"time"
)

func TestPrompt_Defaults(t *testing.T) {
	state := DefaultState(time.Now())
	got := Prompt(&state, "U1")
	want := promptPreamble + "- You're in a super friendly and helpful mood\n"
	if got != want {
		t.Fatalf("prompt =\n%q\nwant\n%q", got, want)
	}
}

func TestPrompt_FullState(t *testing.T) {
	now := time.Now()
	state := DefaultState(now)
	state.Traits.Sassiness = 0.5
	state.Traits.Friendliness = 0.3
	state.Traits.Vengefulness = 0.7
	state.RecentExperiences = []Experience{{Kind: ExperienceNegative, Timestamp: now}}
	state.UserInteractions["U1"] = &InteractionRecord{
		InsultCount:     2,
		ComplimentCount: 1,
		MemorableEvents: []MemorableEvent{
			{Event: "ships on Fridays"}, {Event: "likes Go"}, {Event: "owns a cat"}, {Event: "hidden"},
		},
	}

	want := promptPreamble +
		"- You have a playful, slightly sassy attitude\n" +
		"- You're feeling a bit guarded and cautious\n" +
		"- You're feeling mischievous and ready to throw shade\n" +
		"- This user has insulted you 2 times\n" +
		"- This user has been nice to you 1 times\n" +
		"- Notable things about this user:\n" +
		"  • ships on Fridays\n" +
		"  • likes Go\n" +
		"  • owns a cat\n" +
		"- Recent interactions have made you defensive and sassy\n"
	if got := Prompt(&state, "U1"); got != want {
		t.Fatalf("prompt =\n%s\nwant\n%s", got, want)
	}

	// Without a user the relationship lines are omitted.
	anon := Prompt(&state, "")
	if anon != promptPreamble+
		"- You have a playful, slightly sassy attitude\n"+
		"- You're feeling a bit guarded and cautious\n"+
		"- You're feeling mischievous and ready to throw shade\n"+
		"- Recent interactions have made you defensive and sassy\n" {
		t.Fatalf("anonymous prompt = %q", anon)
	}
}

func TestPrompt_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		traits Traits
		mood   ExperienceKind
		want   string
	}{
		{
			name:   "boundaries are exclusive",
			traits: Traits{Sassiness: 0.4, Friendliness: 0.4, Vengefulness: 0.6},
			want:   promptPreamble,
		},
		{
			name:   "sassiness at 0.7 is only playful",
			traits: Traits{Sassiness: 0.7, Friendliness: 0.5},
			want:   promptPreamble + "- You have a playful, slightly sassy attitude\n",
		},
		{
			name:   "extra sassy and happy",
			traits: Traits{Sassiness: 0.71, Friendliness: 0.5},
			mood:   ExperiencePositive,
			want: promptPreamble +
				"- You're feeling extra sassy and witty\n" +
				"- Recent positive interactions have put you in a great mood\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := DefaultState(time.Now())
			state.Traits = tt.traits
			if tt.mood != "" {
				state.RecentExperiences = []Experience{{Kind: tt.mood}}
			}
			if got := Prompt(&state, ""); got != tt.want {
				t.Fatalf("prompt = %q, want %q", got, tt.want)
			}
		})
	}
}
