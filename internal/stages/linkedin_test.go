package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/candidate-profiler/internal/candidate"
	"github.com/sells-group/candidate-profiler/pkg/linkedin"
	linkedinmocks "github.com/sells-group/candidate-profiler/pkg/linkedin/mocks"
)

func TestLinkedInLookup_Process(t *testing.T) {
	client := linkedinmocks.NewMockClient(t)
	client.On("GetProfile", mock.Anything, "ada-lovelace").Return(&linkedin.Profile{
		ID:        "12345",
		Username:  "ada-lovelace",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Headline:  "Analyst",
		Geo:       linkedin.Geo{Full: "London, UK"},
		Educations: []linkedin.Education{
			{SchoolName: "Home", FieldOfStudy: "Mathematics", End: linkedin.YearMonth{Year: 1835}},
		},
		FullPositions: []linkedin.Position{
			{CompanyName: "Analytical Engines", Title: "Programmer", Start: linkedin.YearMonth{Year: 1842}},
		},
		Skills: []linkedin.Skill{{Name: "Algorithms"}, {Name: ""}},
	}, nil)

	s, err := NewLinkedInLookup(testDeps(newTestStore(t), nil), client)
	require.NoError(t, err)

	res, err := s.Process(context.Background(), candidate.Candidate{
		ID:         "c1",
		Enrichment: candidate.Enrichment{Handles: &candidate.Handles{LinkedIn: "ada-lovelace"}},
	})
	require.NoError(t, err)

	p := res.Patch.LinkedIn
	require.NotNil(t, p)
	assert.Equal(t, "12345", p.ID)
	assert.Equal(t, "Ada Lovelace", p.FullName)
	assert.Equal(t, "London, UK", p.Location)
	require.Len(t, p.Educations, 1)
	assert.Equal(t, "1835", p.Educations[0].EndDate)
	require.Len(t, p.Experiences, 1)
	assert.Equal(t, "1842", p.Experiences[0].StartDate)
	assert.Equal(t, "Present", p.Experiences[0].EndDate)
	assert.Equal(t, []string{"Algorithms"}, p.Skills)
}

func TestLinkedInLookup_NoHandle(t *testing.T) {
	s, err := NewLinkedInLookup(testDeps(newTestStore(t), nil), linkedinmocks.NewMockClient(t))
	require.NoError(t, err)

	_, err = s.Process(context.Background(), candidate.Candidate{ID: "c1"})
	assert.ErrorIs(t, err, ErrNoHandle)

	_, err = s.Process(context.Background(), candidate.Candidate{
		ID:         "c1",
		Enrichment: candidate.Enrichment{Handles: &candidate.Handles{GitHub: "ada"}},
	})
	assert.ErrorIs(t, err, ErrNoHandle)
}

func TestLinkedInLookup_ProfileMissing(t *testing.T) {
	client := linkedinmocks.NewMockClient(t)
	client.On("GetProfile", mock.Anything, "ghost").Return(nil, linkedin.ErrProfileNotFound)

	s, err := NewLinkedInLookup(testDeps(newTestStore(t), nil), client)
	require.NoError(t, err)
	_, err = s.Process(context.Background(), candidate.Candidate{
		ID:         "c1",
		Enrichment: candidate.Enrichment{Handles: &candidate.Handles{LinkedIn: "ghost"}},
	})
	assert.ErrorIs(t, err, linkedin.ErrProfileNotFound)
}
