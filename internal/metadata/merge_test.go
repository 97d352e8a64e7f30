package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func part(name string, priority, order int, books ...*BookMetadata) partial {
	return partial{
		cfg:   ProviderConfig{Name: name, Priority: priority, Enabled: true},
		order: order,
		books: books,
	}
}

func TestMergeISBN_PriorityWinsScalars(t *testing.T) {
	parts := []partial{
		part("second", 2, 1, &BookMetadata{
			ISBN:      "9780747532699",
			Title:     "Harry Potter and the Philosopher's Stone (Open Library)",
			Publisher: "Bloomsbury UK",
			PageCount: 223,
		}),
		part("first", 1, 0, &BookMetadata{
			ISBN:        "9780747532699",
			Title:       "Harry Potter and the Philosopher's Stone",
			Description: "The boy who lived.",
		}),
	}

	merged, outcomes := mergeISBN("9780747532699", parts)
	require.NotNil(t, merged)

	// Priority 1 sets title and description; priority 2 fills the rest.
	require.Equal(t, "Harry Potter and the Philosopher's Stone", merged.Title)
	require.Equal(t, "The boy who lived.", merged.Description)
	require.Equal(t, "Bloomsbury UK", merged.Publisher)
	require.Equal(t, 223, merged.PageCount)
	require.Equal(t, []string{"first", "second"}, merged.SourceProviders)

	require.Len(t, outcomes, 2)
	require.Equal(t, "first", outcomes[0].Provider)
	require.Equal(t, StatusOK, outcomes[0].Status)
}

func TestMergeISBN_DeterministicAcrossArrivalOrder(t *testing.T) {
	build := func() []partial {
		return []partial{
			part("a", 1, 0, &BookMetadata{ISBN: "9780747532699", Title: "From A"}),
			part("b", 1, 1, &BookMetadata{ISBN: "9780747532699", Title: "From B"}),
		}
	}

	forward, _ := mergeISBN("9780747532699", build())

	reversed := build()
	reversed[0], reversed[1] = reversed[1], reversed[0]
	backward, _ := mergeISBN("9780747532699", reversed)

	// Equal priority resolves by registry order, not slice order.
	require.Equal(t, "From A", forward.Title)
	require.Equal(t, forward.Title, backward.Title)
}

func TestMergeISBN_IntegrityGuardRejectsMismatch(t *testing.T) {
	parts := []partial{
		part("good", 1, 0, &BookMetadata{ISBN: "9780000000002", Title: "Right Book"}),
		part("confused", 2, 1, &BookMetadata{ISBN: "9789999999991", Title: "Wrong Book", Publisher: "Should Not Appear"}),
	}

	merged, outcomes := mergeISBN("9780000000002", parts)
	require.NotNil(t, merged)
	require.Equal(t, "Right Book", merged.Title)
	require.Empty(t, merged.Publisher)
	require.Equal(t, []string{"good"}, merged.SourceProviders)

	require.Equal(t, StatusRejected, outcomes[1].Status)
}

func TestMergeISBN_AcceptsISBN10Equivalent(t *testing.T) {
	// 0-306-40615-2 is the ISBN-10 form of 9780306406157.
	parts := []partial{
		part("legacy", 1, 0, &BookMetadata{ISBN: "0306406152", Title: "Numerical Recipes"}),
	}

	merged, _ := mergeISBN("9780306406157", parts)
	require.NotNil(t, merged)
	require.Equal(t, "9780306406157", merged.ISBN)
	require.Equal(t, "Numerical Recipes", merged.Title)
}

func TestMergeISBN_AuthorUnionIsCaseInsensitive(t *testing.T) {
	parts := []partial{
		part("first", 1, 0, &BookMetadata{
			ISBN:    "9780261103252",
			Title:   "The Fellowship of the Ring",
			Authors: []string{"J.R.R. Tolkien"},
		}),
		part("second", 2, 1, &BookMetadata{
			ISBN:    "9780261103252",
			Authors: []string{"j.r.r. tolkien", "Christopher Tolkien"},
		}),
	}

	merged, _ := mergeISBN("9780261103252", parts)
	require.Equal(t, []string{"J.R.R. Tolkien", "Christopher Tolkien"}, merged.Authors)
}

func TestMergeISBN_FailureIsolation(t *testing.T) {
	parts := []partial{
		part("working", 2, 1, &BookMetadata{ISBN: "9780747532699", Title: "Still Here"}),
		{cfg: ProviderConfig{Name: "broken", Priority: 1}, order: 0, err: errors.New("connection refused")},
		{cfg: ProviderConfig{Name: "keyless", Priority: 3}, order: 2, skipped: true, skipReason: "api key required but not configured"},
	}

	merged, outcomes := mergeISBN("9780747532699", parts)
	require.NotNil(t, merged)
	require.Equal(t, "Still Here", merged.Title)

	require.Len(t, outcomes, 3)
	require.Equal(t, StatusFailed, outcomes[0].Status)
	require.Contains(t, outcomes[0].Reason, "connection refused")
	require.Equal(t, StatusOK, outcomes[1].Status)
	require.Equal(t, StatusSkipped, outcomes[2].Status)
}

func TestMergeISBN_AllNotFound(t *testing.T) {
	parts := []partial{
		part("a", 1, 0),
		part("b", 2, 1),
	}

	merged, outcomes := mergeISBN("9780747532699", parts)
	require.Nil(t, merged)
	require.Len(t, outcomes, 2)
	require.Equal(t, StatusNotFound, outcomes[0].Status)
	require.Equal(t, StatusNotFound, outcomes[1].Status)
}

func TestMergeSearch_DedupByISBN(t *testing.T) {
	parts := []partial{
		part("first", 1, 0, &BookMetadata{
			ISBN:  "9780747532699",
			Title: "Harry Potter and the Philosopher's Stone",
		}),
		part("second", 2, 1, &BookMetadata{
			// Same book via its ISBN-10 form.
			ISBN:      "0747532699",
			Title:     "Harry Potter and the Philosopher's Stone",
			Publisher: "Bloomsbury",
		}),
	}

	results := mergeSearch(parts, 10)
	require.Len(t, results, 1)
	require.Equal(t, "9780747532699", results[0].ISBN)
	require.Equal(t, "Bloomsbury", results[0].Publisher)
	require.Equal(t, []string{"first", "second"}, results[0].SourceProviders)
}

func TestMergeSearch_TitleDedupWhenISBNMissing(t *testing.T) {
	parts := []partial{
		part("first", 1, 0, &BookMetadata{
			Title:   "The Hobbit",
			Authors: []string{"J.R.R. Tolkien"},
		}),
		part("second", 2, 1, &BookMetadata{
			ISBN:      "9780261103344",
			Title:     "The  Hobbit",
			Authors:   []string{"j.r.r. tolkien"},
			Publisher: "HarperCollins",
		}),
	}

	results := mergeSearch(parts, 10)
	require.Len(t, results, 1)
	require.Equal(t, "9780261103344", results[0].ISBN)
	require.Equal(t, "HarperCollins", results[0].Publisher)
}

func TestMergeSearch_DistinctISBNsAreSeparateEditions(t *testing.T) {
	parts := []partial{
		part("first", 1, 0, &BookMetadata{
			ISBN:    "9780261103252",
			Title:   "The Fellowship of the Ring",
			Authors: []string{"J.R.R. Tolkien"},
		}),
		part("second", 2, 1, &BookMetadata{
			ISBN:    "9780547928210",
			Title:   "The Fellowship of the Ring",
			Authors: []string{"J.R.R. Tolkien"},
		}),
	}

	results := mergeSearch(parts, 10)
	require.Len(t, results, 2)
}

func TestMergeSearch_OmnibusFiltered(t *testing.T) {
	parts := []partial{
		part("first", 1, 0,
			&BookMetadata{ISBN: "9780000000019", Title: "The Dark Tower I: The Gunslinger"},
			&BookMetadata{ISBN: "9780000000026", Title: "The Complete Chronicles: Books 1-3 Omnibus"},
			&BookMetadata{ISBN: "9780000000033", Title: "Collection of Essays"},
		),
	}

	results := mergeSearch(parts, 10)
	require.Len(t, results, 2)
	require.Equal(t, "The Dark Tower I: The Gunslinger", results[0].Title)
	// "Collection" without a volume range is a regular title.
	require.Equal(t, "Collection of Essays", results[1].Title)
}

func TestMergeSearch_TruncatesToMax(t *testing.T) {
	books := make([]*BookMetadata, 0, 5)
	for _, title := range []string{"A", "B", "C", "D", "E"} {
		books = append(books, &BookMetadata{Title: title})
	}
	parts := []partial{part("only", 1, 0, books...)}

	results := mergeSearch(parts, 3)
	require.Len(t, results, 3)
	require.Equal(t, "A", results[0].Title)
}

func TestMergeSearch_InvalidISBNTreatedAsMissing(t *testing.T) {
	parts := []partial{
		part("sloppy", 1, 0, &BookMetadata{ISBN: "not-an-isbn", Title: "Mystery Title"}),
	}

	results := mergeSearch(parts, 10)
	require.Len(t, results, 1)
	require.Empty(t, results[0].ISBN)
}

func TestUnionFold(t *testing.T) {
	out := unionFold([]string{"Fantasy", "Fiction"}, []string{"fantasy", "Adventure", ""})
	require.Equal(t, []string{"Fantasy", "Fiction", "Adventure"}, out)
}
