package submission

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestResolverParse(t *testing.T) {
	r := NewResolver(zerolog.Nop())

	tests := []struct {
		name     string
		filename string
		want     ParsedFilename
	}{
		{
			name:     "late with both ids and remainder",
			filename: "bob_LATE_654321_987654_hw3.pdf",
			want: ParsedFilename{
				StudentName:      "bob",
				IsLate:           true,
				StudentID:        "654321",
				SubmissionID:     "987654",
				Remainder:        "hw3",
				Extension:        ".pdf",
				OriginalFilename: "bob_LATE_654321_987654_hw3.pdf",
			},
		},
		{
			name:     "on time with single id",
			filename: "alice_123456_p1.py",
			want: ParsedFilename{
				StudentName:      "alice",
				StudentID:        "123456",
				Remainder:        "p1",
				Extension:        ".py",
				OriginalFilename: "alice_123456_p1.py",
			},
		},
		{
			name:     "lowercase late marker",
			filename: "carol_late_111222_essay.docx",
			want: ParsedFilename{
				StudentName:      "carol",
				IsLate:           true,
				StudentID:        "111222",
				Remainder:        "essay",
				Extension:        ".docx",
				OriginalFilename: "carol_late_111222_essay.docx",
			},
		},
		{
			name:     "extra numeric tokens go to remainder",
			filename: "dave_123456_654321_2024_final.txt",
			want: ParsedFilename{
				StudentName:      "dave",
				StudentID:        "123456",
				SubmissionID:     "654321",
				Remainder:        "2024_final",
				Extension:        ".txt",
				OriginalFilename: "dave_123456_654321_2024_final.txt",
			},
		},
		{
			name:     "short numeric token is not an id",
			filename: "erin_123_456789_notes.md",
			want: ParsedFilename{
				StudentName:      "erin",
				StudentID:        "456789",
				Remainder:        "123_notes",
				Extension:        ".md",
				OriginalFilename: "erin_123_456789_notes.md",
			},
		},
		{
			name:     "no ids at all",
			filename: "frank_homework.pdf",
			want: ParsedFilename{
				StudentName:      "frank",
				StudentID:        "unknown",
				Remainder:        "homework",
				Extension:        ".pdf",
				OriginalFilename: "frank_homework.pdf",
			},
		},
		{
			name:     "single token degrades",
			filename: "mystery.pdf",
			want: ParsedFilename{
				StudentName:      "mystery",
				StudentID:        "unknown",
				Extension:        ".pdf",
				OriginalFilename: "mystery.pdf",
			},
		},
		{
			name:     "directory prefix is ignored",
			filename: "/data/submissions/alice_123456_p1.py",
			want: ParsedFilename{
				StudentName:      "alice",
				StudentID:        "123456",
				Remainder:        "p1",
				Extension:        ".py",
				OriginalFilename: "alice_123456_p1.py",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, r.Parse(tt.filename))
		})
	}
}

func TestStudentKey(t *testing.T) {
	r := NewResolver(zerolog.Nop())

	require.Equal(t, "alice_123456", r.Parse("alice_123456_p1.py").StudentKey())
	require.Equal(t, "mystery_unknown", r.Parse("mystery.pdf").StudentKey())
}

func TestParseNeverPanics(t *testing.T) {
	r := NewResolver(zerolog.Nop())

	for _, filename := range []string{"", ".", "..", "___", "_.pdf", "a_b_c_d_e_f_g.zip"} {
		require.NotPanics(t, func() { r.Parse(filename) })
	}
}
