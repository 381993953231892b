package extract

import "testing"

func TestQuestionNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Question 5b", "5"},
		{"question 12", "12"},
		{"q7", "7"},
		{"Q 3a", "3"},
		{"can you explain question 4 again", "4"},
		{"3a please", "3"},
		{"  10", "10"},
		{"help me", ""},
		{"what is the marking scheme", ""},
		{"", ""},
		{"   ", ""},
		{"equations are hard", ""},
		{"question 3 part 2", "3"},
	}
	for _, tc := range cases {
		if got := QuestionNumber(tc.in); got != tc.want {
			t.Errorf("QuestionNumber(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQuestionNumberIsDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := QuestionNumber("Question 5b"); got != "5" {
			t.Fatalf("run %d: got %q", i, got)
		}
	}
}
