package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows []TimelineRow
}

func (m *memoryRepo) matches(row TimelineRow, filters TimelineFilters) bool {
	if !filters.From.IsZero() && row.At.Before(filters.From) {
		return false
	}
	if !filters.To.IsZero() && !row.At.Before(filters.To) {
		return false
	}
	if filters.ActorID > 0 && row.ActorID != filters.ActorID {
		return false
	}
	if filters.Entity != "" && row.Entity != filters.Entity {
		return false
	}
	if filters.Action != "" && row.Action != filters.Action {
		return false
	}
	return true
}

func (m *memoryRepo) TimelineWindow(_ context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	all, _ := m.TimelineAll(context.Background(), filters)
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memoryRepo) TimelineAll(_ context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	var out []TimelineRow
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.matches(m.rows[i], filters) {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func seedRows(n int) []TimelineRow {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := make([]TimelineRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TimelineRow{
			At:       base.Add(time.Duration(i) * time.Minute),
			ActorID:  int64(1 + i%2),
			Action:   "sale.checkout",
			Entity:   "sale",
			EntityID: fmt.Sprintf("R-%03d", i),
		})
	}
	return rows
}

func TestTimelinePaging(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(45)})

	first, err := svc.Timeline(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, first.Rows, 20)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)
	require.Equal(t, "R-044", first.Rows[0].EntityID)

	last, err := svc.Timeline(context.Background(), TimelineFilters{Page: 3})
	require.NoError(t, err)
	require.Len(t, last.Rows, 5)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
	require.Equal(t, "R-000", last.Rows[4].EntityID)
}

func TestTimelineClampsPageSize(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(80)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Len(t, result.Rows, 50)
}

func TestTimelineFiltersByActor(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(10)})

	result, err := svc.Timeline(context.Background(), TimelineFilters{ActorID: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 5)
	for _, row := range result.Rows {
		require.EqualValues(t, 2, row.ActorID)
	}
}

func TestExportCSV(t *testing.T) {
	svc := NewService(&memoryRepo{rows: seedRows(3)})

	rows, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	data, err := WriteCSV(rows)
	require.NoError(t, err)
	require.Contains(t, string(data), "at,actor_id,action,entity,entity_id,meta")
	require.Contains(t, string(data), "R-002")
}
