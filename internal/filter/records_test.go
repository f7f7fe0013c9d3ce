package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	migrateerrors "authormigrate/internal/errors"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) TypeExists(ctx context.Context, name string) (bool, error) {
	args := m.Called(ctx, name)
	return args.Bool(0), args.Error(1)
}

type staticSource struct {
	records []Record
	err     error
}

func (s staticSource) Records(context.Context, TypeFilter) ([]Record, error) {
	return append([]Record(nil), s.records...), s.err
}

func TestParseTypes(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		expectAny   bool
		expectTypes []string
	}{
		{name: "any", raw: "any", expectAny: true},
		{name: "empty", raw: "", expectAny: true},
		{name: "only separators", raw: " , ,", expectAny: true},
		{name: "single type", raw: "post", expectTypes: []string{"post"}},
		{name: "list with spaces", raw: "post, page ,story", expectTypes: []string{"post", "page", "story"}},
		{name: "duplicates dropped", raw: "post,post,page", expectTypes: []string{"post", "page"}},
		{name: "any inside a list", raw: "post,any", expectAny: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseTypes(tt.raw)
			assert.Equal(t, tt.expectAny, f.Any())
			assert.Equal(t, tt.expectTypes, f.Types())
		})
	}
}

func TestTypeFilterMatches(t *testing.T) {
	f := ParseTypes("post,page")
	assert.True(t, f.Matches("post"))
	assert.True(t, f.Matches("page"))
	assert.False(t, f.Matches("attachment"))
	assert.Equal(t, "post,page", f.String())

	all := ParseTypes("any")
	assert.True(t, all.Matches("attachment"))
	assert.Equal(t, "any", all.String())
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		known         map[string]bool
		expectInvalid []string
	}{
		{name: "all known", raw: "post,page", known: map[string]bool{"post": true, "page": true}},
		{name: "one unknown", raw: "post,recipe", known: map[string]bool{"post": true}, expectInvalid: []string{"recipe"}},
		{
			name:          "every unknown type is reported",
			raw:           "recipe,story,event",
			known:         map[string]bool{},
			expectInvalid: []string{"recipe", "story", "event"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseTypes(tt.raw)
			checker := &mockChecker{}
			for _, name := range f.Types() {
				checker.On("TypeExists", mock.Anything, name).Return(tt.known[name], nil).Once()
			}

			err := Verify(context.Background(), f, checker)
			checker.AssertExpectations(t)

			if tt.expectInvalid == nil {
				require.NoError(t, err)
				return
			}

			var typeErr *migrateerrors.ContentTypeError
			require.ErrorAs(t, err, &typeErr)
			assert.Equal(t, tt.expectInvalid, typeErr.Invalid)
		})
	}
}

func TestVerifyAnySkipsChecker(t *testing.T) {
	checker := &mockChecker{}
	require.NoError(t, Verify(context.Background(), ParseTypes("any"), checker))
	checker.AssertNotCalled(t, "TypeExists", mock.Anything, mock.Anything)
}

func TestVerifyCheckerFailure(t *testing.T) {
	checkErr := errors.New("connection reset")
	checker := &mockChecker{}
	checker.On("TypeExists", mock.Anything, "post").Return(false, checkErr)

	err := Verify(context.Background(), ParseTypes("post"), checker)
	assert.ErrorIs(t, err, checkErr)
}

func TestRecordDiscovery(t *testing.T) {
	source := staticSource{records: []Record{
		{ID: 1, AuthorID: 2, Type: "post"},
		{ID: 2, AuthorID: 2, Type: "attachment"},
		{ID: 3, AuthorID: 4, Type: "page"},
	}}

	records, err := NewRecordDiscovery(source, ParseTypes("post,page")).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Record{{ID: 1, AuthorID: 2, Type: "post"}, {ID: 3, AuthorID: 4, Type: "page"}}, records)

	all, err := NewRecordDiscovery(source, ParseTypes("any")).Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordDiscoverySourceFailure(t *testing.T) {
	sourceErr := errors.New("query failed")

	_, err := NewRecordDiscovery(staticSource{err: sourceErr}, ParseTypes("any")).Discover(context.Background())
	assert.ErrorIs(t, err, sourceErr)
}
