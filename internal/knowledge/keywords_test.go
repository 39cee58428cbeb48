package knowledge

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "drops short tokens",
			text: "the cat sat on a very large colorful mat",
			want: []string{"very", "large", "colorful"},
		},
		{
			name: "lowercases and deduplicates",
			text: "Employee Handbook employee HANDBOOK policies",
			want: []string{"employee", "handbook", "policies"},
		},
		{
			name: "strips surrounding punctuation",
			text: "onboarding, benefits. (vacation)",
			want: []string{"onboarding", "benefits", "vacation"},
		},
		{
			name: "empty text",
			text: "   ",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractKeywords(tc.text); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractKeywords = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExtractKeywordsCapsAtFifteen(t *testing.T) {
	var words []string
	for i := 0; i < 30; i++ {
		words = append(words, fmt.Sprintf("keyword%02d", i))
	}
	got := ExtractKeywords(strings.Join(words, " "))
	if len(got) != maxKeywords {
		t.Fatalf("len = %d, want %d", len(got), maxKeywords)
	}
	if got[0] != "keyword00" || got[14] != "keyword14" {
		t.Fatalf("order not preserved: %v", got)
	}
}

func TestComputeConfidence(t *testing.T) {
	withImages := ComputeConfidence(true)
	if withImages.ImageProcessing != ConfidenceImageProcessing {
		t.Fatalf("image score = %v", withImages.ImageProcessing)
	}
	if math.Abs(withImages.Overall-0.865) > 1e-9 {
		t.Fatalf("overall = %v, want 0.865", withImages.Overall)
	}

	noImages := ComputeConfidence(false)
	if noImages.ImageProcessing != 0 {
		t.Fatalf("image score without successes = %v, want 0", noImages.ImageProcessing)
	}
	if noImages.Overall >= withImages.Overall {
		t.Fatalf("overall without images (%v) should be lower than with (%v)", noImages.Overall, withImages.Overall)
	}
}
