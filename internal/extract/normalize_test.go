package extract

import (
	"testing"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   enricher.CompanyFields
		key  string
		want any
	}{
		{
			name: "adds https scheme",
			in:   enricher.CompanyFields{"website": "acme.example"},
			key:  "website",
			want: "https://acme.example",
		},
		{
			name: "keeps existing scheme",
			in:   enricher.CompanyFields{"website": "http://acme.example"},
			key:  "website",
			want: "http://acme.example",
		},
		{
			name: "maps bare size range",
			in:   enricher.CompanyFields{"company_size": "10000+"},
			key:  "company_size",
			want: "10,001+ employees",
		},
		{
			name: "passes unknown size through",
			in:   enricher.CompanyFields{"company_size": "1,001-5,000 employees"},
			key:  "company_size",
			want: "1,001-5,000 employees",
		},
		{
			name: "collapses whitespace",
			in:   enricher.CompanyFields{"name": "  Acme \n Robotics  "},
			key:  "name",
			want: "Acme Robotics",
		},
		{
			name: "leaves non-string values alone",
			in:   enricher.CompanyFields{"staffCount": 3211},
			key:  "staffCount",
			want: 3211,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if got[tt.key] != tt.want {
				t.Fatalf("expected %v got %v", tt.want, got[tt.key])
			}
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := enricher.CompanyFields{"website": "acme.example"}
	_ = Normalize(in)
	if in["website"] != "acme.example" {
		t.Fatalf("input mutated: %v", in["website"])
	}
}
