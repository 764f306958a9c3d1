package normalize

import "testing"

func TestCleanOCRText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "letter O between digits",
			input: "TOTAL 1O,5O",
			want:  "TOTAL 10,50",
		},
		{
			name:  "letter l between digits",
			input: "2l,36",
			want:  "21,36",
		},
		{
			name:  "spaced decimal separator",
			input: "TOTAL 12 , 34",
			want:  "TOTAL 12,34",
		},
		{
			name:  "E misread for euro",
			input: "TOTAL 3,45 E",
			want:  "TOTAL 3,45€",
		},
		{
			name:  "plain text untouched",
			input: "MERCADONA S.A. Oliva",
			want:  "MERCADONA S.A. Oliva",
		},
		{
			name:  "word boundaries untouched",
			input: "BOlSA PlASTICO", // letters inside words stay letters
			want:  "BOlSA PlASTICO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanOCRText(tt.input); got != tt.want {
				t.Errorf("CleanOCRText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
