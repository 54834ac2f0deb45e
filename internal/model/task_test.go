package model

import (
	"errors"
	"testing"
)

func TestOutcome_Detail(t *testing.T) {
	tests := []struct {
		outcome  Outcome
		expected string
	}{
		{Outcome{Kind: OutcomeSuccess}, ""},
		{Outcome{Kind: OutcomeFailure, Err: errors.New("exit status 1")}, "exit status 1"},
		{Outcome{Kind: OutcomeFailure, Err: errors.New("exit status 2"), Output: "404 Not Found"}, "exit status 2: 404 Not Found"},
	}

	for _, test := range tests {
		result := test.outcome.Detail()
		if result != test.expected {
			t.Errorf("Detail() = %q, expected %q", result, test.expected)
		}
	}
}

func TestDownloadItem_Validate(t *testing.T) {
	tests := []struct {
		name  string
		item  *DownloadItem
		valid bool
	}{
		{"nil", nil, false},
		{"empty url", &DownloadItem{Name: "a"}, false},
		{"empty name", &DownloadItem{URL: "https://example.com/a.m3u8"}, false},
		{"default type", &DownloadItem{Name: "a", URL: "https://example.com/a.m3u8"}, true},
		{"ytdlp", &DownloadItem{Name: "a", URL: "https://example.com/v", Type: VideoTypeYTDLP}, true},
		{"unknown type", &DownloadItem{Name: "a", URL: "https://example.com/v", Type: "flash"}, false},
	}

	for _, test := range tests {
		err := test.item.Validate()
		if test.valid && err != nil {
			t.Errorf("%s: expected valid, got %v", test.name, err)
		}
		if !test.valid && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", test.name, err)
		}
	}
}

func TestDownloadItem_Normalize(t *testing.T) {
	item := &DownloadItem{Name: "  clip ", URL: " https://example.com/a.m3u8 ", Status: StatusSuccess}
	item.Normalize()

	if item.Name != "clip" {
		t.Errorf("Expected trimmed name, got %q", item.Name)
	}
	if item.Type != VideoTypeM3U8 {
		t.Errorf("Expected default type m3u8, got %s", item.Type)
	}
	if item.Status != StatusPending {
		t.Errorf("Expected new item to be pending, got %s", item.Status)
	}
}

func TestPagination_Normalize(t *testing.T) {
	p := Pagination{}.Normalize()
	if p.Current != 1 || p.PageSize != DefaultPageSize {
		t.Errorf("Unexpected defaults: %+v", p)
	}
	if p.Offset() != 0 {
		t.Errorf("Expected offset 0, got %d", p.Offset())
	}

	p = Pagination{Current: 3, PageSize: 10}.Normalize()
	if p.Offset() != 20 {
		t.Errorf("Expected offset 20, got %d", p.Offset())
	}

	p = Pagination{Current: 1, PageSize: 10000}.Normalize()
	if p.PageSize != MaxPageSize {
		t.Errorf("Expected page size clamped to %d, got %d", MaxPageSize, p.PageSize)
	}

	p = Pagination{Current: 18446744073709553, PageSize: MaxPageSize}.Normalize()
	if p.Current != MaxPage {
		t.Errorf("Expected page clamped to %d, got %d", MaxPage, p.Current)
	}
	if p.Offset() < 0 {
		t.Errorf("Expected a non-negative offset, got %d", p.Offset())
	}
}

func TestPagination_Matches(t *testing.T) {
	done := Pagination{Filter: FilterDone}
	list := Pagination{Filter: FilterList}
	all := Pagination{}

	if !done.Matches(StatusSuccess) || done.Matches(StatusFailed) {
		t.Error("done filter should only match success")
	}
	if list.Matches(StatusSuccess) || !list.Matches(StatusWaiting) {
		t.Error("list filter should match everything except success")
	}
	if !all.Matches(StatusSuccess) || !all.Matches(StatusPending) {
		t.Error("empty filter should match everything")
	}
}
