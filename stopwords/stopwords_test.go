package stopwords

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "newline separated",
			input: "купить\nцена\nнедорого",
			want:  []string{"купить", "цена", "недорого"},
		},
		{
			name:  "mixed separators",
			input: "one, two;three\nfour\tfive  six",
			want:  []string{"one", "two", "three", "four", "five", "six"},
		},
		{
			name:  "empty tokens dropped",
			input: ",,;\n\n  ,word,  ;\n",
			want:  []string{"word"},
		},
		{
			name:  "duplicates keep first occurrence",
			input: "alpha,beta,alpha;beta\nalpha",
			want:  []string{"alpha", "beta"},
		},
		{
			name:  "windows line endings",
			input: "one\r\ntwo\r\n",
			want:  []string{"one", "two"},
		},
		{
			name:  "empty input",
			input: "",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("word %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
