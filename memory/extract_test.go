package memory

import (
	"reflect"
	"strings"
	"testing"
)

func TestFindMemorableDetails(t *testing.T) {
	l := newTestLedger(t, Options{})
	long := "I'm " + strings.Repeat("a", 150)

	tests := []struct {
		name        string
		text        string
		wantOK      bool
		wantRule    string
		wantImp     float64
		wantContent string
	}{
		{"too short", "hey", false, "", 0, ""},
		{"name", "Hi there, my name is Alice and I code", true, "name", 0.9, "my name is Alice"},
		{"identity", "I'm working on a compiler. It is slow", true, "identity", 0.8, "I'm working on a compiler"},
		{"location", "I live in Berlin, Germany", true, "location", 0.9, "I live in Berlin"},
		{"work", "I work at Acme Corp", true, "work", 0.8, "I work at Acme Corp"},
		{"preference", "honestly I love functional programming!", true, "preference", 0.7, "I love functional programming"},
		{"favorite", "My favorite editor is vim", true, "favorite", 0.7, "My favorite editor is vim"},
		{"dislike", "We don't like flaky tests", true, "dislike", 0.7, "don't like flaky tests"},
		{"ask recall", "Do you remember what we discussed", true, "ask_recall", 0.9, "Do you remember what we discussed"},
		{"keyword", "ugh, forgot the password again", true, "keyword", 0.85, "ugh, forgot the password again"},
		{"fact", "The deploy is broken", true, "fact", 0.7, "The deploy is broken"},
		{"generic", "lol ok sure", true, "generic", 0.5, "lol ok sure"},
		{"truncated", long, true, "identity", 0.8, long[:100] + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := l.FindMemorableDetails(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v (detail %+v)", ok, tt.wantOK, got)
			}
			if !ok {
				return
			}
			if got.Rule != tt.wantRule {
				t.Errorf("rule = %q, want %q", got.Rule, tt.wantRule)
			}
			if got.Importance != tt.wantImp {
				t.Errorf("importance = %v, want %v", got.Importance, tt.wantImp)
			}
			if got.Content != tt.wantContent {
				t.Errorf("content = %q, want %q", got.Content, tt.wantContent)
			}
		})
	}
}

func TestFindMemorableDetails_Threshold(t *testing.T) {
	l := newTestLedger(t, Options{MemorableThreshold: 0.6})

	if _, ok := l.FindMemorableDetails("lol ok sure"); ok {
		t.Fatal("generic text should fall below a 0.6 threshold")
	}
	if _, ok := l.FindMemorableDetails("The build is green"); !ok {
		t.Fatal("fact text should pass a 0.6 threshold")
	}
}

func TestExtractMentionedUsers(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"no mentions here", []string{}},
		{"<@U123> and <@W9ZZ>", []string{"U123", "W9ZZ"}},
		{"<@U1> <@U2> <@U1>", []string{"U1", "U2", "U1"}},
		{"<@u1> lower case is not an id", []string{}},
	}
	for _, tt := range tests {
		got := ExtractMentionedUsers(tt.text)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractMentionedUsers(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
